// Package analysis loads audio and extracts frame-level descriptors.
package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Params are the fixed analysis parameters shared by every descriptor.
type Params struct {
	FrameLength int `json:"frame_length"` // STFT window and RMS/ZCR frame size
	HopLength   int `json:"hop_length"`
	NumMels     int `json:"n_mels"`
	NumMFCC     int `json:"n_mfcc"`
}

// DefaultParams returns the standard 2048/512 analysis setup.
func DefaultParams() Params {
	return Params{FrameLength: 2048, HopLength: 512, NumMels: 128, NumMFCC: 13}
}

// ErrTooShort is returned when the waveform doesn't cover a single hop.
var ErrTooShort = errors.New("audio shorter than one hop")

// Features holds per-hop descriptor series. Matrices are rows x frames and every
// series has NumFrames columns.
type Features struct {
	Params     Params  `json:"params"`
	SampleRate int     `json:"sample_rate"`
	Duration   float64 `json:"duration"`

	Times    []float64 `json:"times"`
	RMS      []float64 `json:"rms"`
	Centroid []float64 `json:"spectral_centroid"`
	ZCR      []float64 `json:"zcr"`
	Novelty  []float64 `json:"novelty"`

	Chroma [][]float64 `json:"chroma"` // 12 pitch classes, C first
	MFCC   [][]float64 `json:"mfcc"`
	MelDB  [][]float64 `json:"mel_db"` // dB relative to the loudest bin, floored at -80
}

// NumFrames returns the shared frame count.
func (f *Features) NumFrames() int {
	return len(f.Times)
}

// FrameDuration is the audio duration divided by the number of chroma frames.
func (f *Features) FrameDuration() float64 {
	if len(f.Chroma) == 0 || len(f.Chroma[0]) == 0 {
		return 0
	}
	return f.Duration / float64(len(f.Chroma[0]))
}

// Extract computes every descriptor for a.
func Extract(a *Audio, p Params) (*Features, error) {
	if a == nil || len(a.Samples) == 0 {
		return nil, fmt.Errorf("extract features: %w", ErrTooShort)
	}
	if p.FrameLength <= 0 || p.HopLength <= 0 || p.NumMels <= 0 || p.NumMFCC <= 0 {
		return nil, fmt.Errorf("extract features: invalid params %+v", p)
	}
	if len(a.Samples) < p.HopLength {
		return nil, fmt.Errorf("extract features: %w", ErrTooShort)
	}
	if p.NumMFCC > p.NumMels {
		return nil, fmt.Errorf("extract features: n_mfcc %d exceeds n_mels %d", p.NumMFCC, p.NumMels)
	}

	cfg := STFTConfig{FFTSize: p.FrameLength, HopSize: p.HopLength}
	n := cfg.NumFrames(len(a.Samples))

	f := &Features{
		Params:     p,
		SampleRate: a.SampleRate,
		Duration:   a.Duration(),
		Times:      make([]float64, n),
	}
	for i := range n {
		f.Times[i] = float64(i*p.HopLength) / float64(a.SampleRate)
	}

	f.RMS = rms(a.Samples, cfg)
	f.ZCR = zeroCrossingRate(a.Samples, cfg)

	power, magnitude := PowerSpectrogram(a.Samples, cfg)
	f.Centroid = spectralCentroid(magnitude, cfg.BinFrequencies(a.SampleRate))
	f.Chroma = chroma(power, chromaFilterbank(a.SampleRate, cfg))

	var mel mat.Dense
	mel.Mul(MelFilterbank(a.SampleRate, cfg, p.NumMels), power)

	// display spectrogram: dB relative to the loudest cell
	var display mat.Dense
	display.CloneFrom(&mel)
	powerToDB(&display, mat.Max(&mel), 80)
	f.MelDB = rows(&display)

	// MFCC and onset strength use an absolute reference
	powerToDB(&mel, 1, 80)

	var mfcc mat.Dense
	mfcc.Mul(dctBasis(p.NumMFCC, p.NumMels), &mel)
	f.MFCC = rows(&mfcc)

	f.Novelty = onsetStrength(&mel, cfg)

	return f, nil
}

// rms is the root mean square of each zero-padded centered frame.
func rms(samples []float64, cfg STFTConfig) []float64 {
	out := make([]float64, cfg.NumFrames(len(samples)))
	frames(samples, cfg, false, func(i int, frame []float64) {
		out[i] = math.Sqrt(floats.Dot(frame, frame) / float64(len(frame)))
	})
	return out
}

// zeroCrossingRate is the fraction of sign changes per edge-padded frame. Zero counts as positive.
func zeroCrossingRate(samples []float64, cfg STFTConfig) []float64 {
	out := make([]float64, cfg.NumFrames(len(samples)))
	frames(samples, cfg, true, func(i int, frame []float64) {
		crossings := 0
		for j := 1; j < len(frame); j++ {
			if math.Signbit(clipTiny(frame[j])) != math.Signbit(clipTiny(frame[j-1])) {
				crossings++
			}
		}
		out[i] = float64(crossings) / float64(len(frame))
	})
	return out
}

// clipTiny zeroes values within the crossing threshold so noise floor jitter isn't counted.
func clipTiny(v float64) float64 {
	if math.Abs(v) <= 1e-10 {
		return 0
	}
	return v
}

// spectralCentroid is the magnitude-weighted mean frequency of each frame.
func spectralCentroid(magnitude *mat.Dense, freqs []float64) []float64 {
	bins, n := magnitude.Dims()
	out := make([]float64, n)
	col := make([]float64, bins)
	for i := range n {
		mat.Col(col, i, magnitude)
		total := floats.Sum(col)
		if total <= 1e-12 {
			continue
		}
		out[i] = floats.Dot(col, freqs) / total
	}
	return out
}

// chroma folds the power spectrum into pitch classes and scales each frame to a max of 1.
func chroma(power, fb *mat.Dense) [][]float64 {
	var c mat.Dense
	c.Mul(fb, power)
	classes, n := c.Dims()
	col := make([]float64, classes)
	for i := range n {
		mat.Col(col, i, &c)
		peak := floats.Max(col)
		if peak <= 1e-12 {
			for k := range col {
				c.Set(k, i, 0)
			}
			continue
		}
		for k := range col {
			c.Set(k, i, col[k]/peak)
		}
	}
	return rows(&c)
}

// onsetStrength is the mean positive first difference of the mel dB spectrogram, shifted so
// each value lines up with the centered frame it describes.
func onsetStrength(melDB *mat.Dense, cfg STFTConfig) []float64 {
	const lag = 1
	bands, n := melDB.Dims()
	shift := lag + cfg.FFTSize/(2*cfg.HopSize)

	out := make([]float64, n)
	for t := shift; t < n; t++ {
		src := t - shift + lag
		var sum float64
		for b := range bands {
			if d := melDB.At(b, src) - melDB.At(b, src-lag); d > 0 {
				sum += d
			}
		}
		out[t] = sum / float64(bands)
	}
	return out
}

// rows copies a matrix into row slices.
func rows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range r {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
