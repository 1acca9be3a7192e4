package commentary

import (
	"fmt"
	"math"

	"github.com/nzoschke/soundscribe/pkg/analysis"
)

// DefaultInterval is the spacing of analysis points in seconds.
const DefaultInterval = 10.0

// Tonality labels.
const (
	Tonal  = "tonal"
	Atonal = "atonal or non-traditional"
)

// Thresholds for the tonality heuristic.
const (
	tonalMaxZCR       = 0.15
	tonalMinChromaStd = 0.2
)

// AnalysisPoint summarizes one downsampled step of the feature series.
type AnalysisPoint struct {
	Time          float64 `json:"time"`
	RMS           float64 `json:"rms"`
	RMSTrend      float64 `json:"rms_trend"`
	Centroid      float64 `json:"centroid"`
	CentroidTrend float64 `json:"centroid_trend"`
	ZCR           float64 `json:"zcr"`
	Key           string  `json:"key"`
	MFCCMean      float64 `json:"mfcc_mean"` // mean of the first three coefficients
}

func (p AnalysisPoint) String() string {
	return fmt.Sprintf(
		"Time: %.2fs, RMS (Loudness): %.4f (Trend: %.4f), Spectral Centroid (Brightness): %.2f (Trend: %.2f), ZCR (Noisiness): %.4f, Key: %s, MFCCs (Timbre): %.2f",
		p.Time, p.RMS, p.RMSTrend, p.Centroid, p.CentroidTrend, p.ZCR, p.Key, p.MFCCMean,
	)
}

// Step returns how many frames separate analysis points: interval/frameDuration
// rounded, never less than one.
func Step(frameDuration, interval float64) int {
	if frameDuration <= 0 {
		return 1
	}
	return max(1, int(math.Round(interval/frameDuration)))
}

// Tonality classifies a piece from its mean ZCR and the spread of its average chroma.
func Tonality(f *analysis.Features) string {
	means := make([]float64, len(f.Chroma))
	for k, row := range f.Chroma {
		means[k] = analysis.Mean(row)
	}
	return classifyTonality(analysis.Mean(f.ZCR), analysis.PopStdDev(means))
}

func classifyTonality(meanZCR, chromaStd float64) string {
	if meanZCR < tonalMaxZCR && chromaStd > tonalMinChromaStd {
		return Tonal
	}
	return Atonal
}

// Points downsamples f to one AnalysisPoint every interval seconds.
func Points(f *analysis.Features, interval float64) []AnalysisPoint {
	n := f.NumFrames()
	if n == 0 {
		return nil
	}
	step := Step(f.FrameDuration(), interval)

	points := make([]AnalysisPoint, 0, (n+step-1)/step)
	column := make([]float64, len(f.Chroma))
	for i := 0; i < n; i += step {
		end := min(i+step, n)

		for k, row := range f.Chroma {
			column[k] = row[i]
		}
		key := ""
		if len(column) > 0 {
			key = analysis.PitchClasses[analysis.ArgMax(column)%len(analysis.PitchClasses)]
		}

		var mfcc []float64
		for c := 0; c < min(3, len(f.MFCC)); c++ {
			mfcc = append(mfcc, f.MFCC[c][i])
		}

		points = append(points, AnalysisPoint{
			Time:          f.Times[i],
			RMS:           f.RMS[i],
			RMSTrend:      analysis.Slope(f.Times[i:end], f.RMS[i:end]),
			Centroid:      f.Centroid[i],
			CentroidTrend: analysis.Slope(f.Times[i:end], f.Centroid[i:end]),
			ZCR:           f.ZCR[i],
			Key:           key,
			MFCCMean:      analysis.Mean(mfcc),
		})
	}
	return points
}
