package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nzoschke/soundscribe/pkg/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFeatures(n int) *analysis.Features {
	const dt = 512.0 / 22050.0
	f := &analysis.Features{
		Params:     analysis.DefaultParams(),
		SampleRate: 22050,
		Duration:   float64(n) * dt,
		Times:      make([]float64, n),
		RMS:        make([]float64, n),
		Centroid:   make([]float64, n),
		ZCR:        make([]float64, n),
		Novelty:    make([]float64, n),
		Chroma:     make([][]float64, 12),
		MFCC:       make([][]float64, 13),
	}
	for k := range f.Chroma {
		f.Chroma[k] = make([]float64, n)
	}
	for k := range f.MFCC {
		f.MFCC[k] = make([]float64, n)
		for i := range n {
			f.MFCC[k][i] = float64(k)
		}
	}
	for i := range n {
		f.Times[i] = float64(i) * dt
		f.RMS[i] = 0.2
		f.Centroid[i] = 1500 + float64(i%7)
		f.ZCR[i] = 0.05
	}
	return f
}

func TestNoveltyPeaks_SingleSpike(t *testing.T) {
	f := testFeatures(100)
	f.Novelty[50] = 1

	peaks := NoveltyPeaks(f)
	require.Len(t, peaks, 1)
	assert.Equal(t, f.Times[50], peaks[0])
}

func TestNoveltyPeaks_Flat(t *testing.T) {
	f := testFeatures(100)
	for i := range f.Novelty {
		f.Novelty[i] = 0.5
	}
	assert.Empty(t, NoveltyPeaks(f))
}

func TestWriteText(t *testing.T) {
	f := testFeatures(100)
	f.Novelty[50] = 1

	var buf bytes.Buffer
	err := WriteText(&buf, Input{
		SourceName: "song.wav",
		Features:   f,
		Narrative:  "A calm drone.",
		AnalyzedAt: time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Quantitative Musicological Analysis Report\nPiece: song.wav\n"))
	assert.Contains(t, out, "Date of Analysis: 2024-03-09 14:05:06\n")
	assert.Contains(t, out, "A calm drone.")
	assert.Contains(t, out, "--- Global Statistics ---")
	for _, name := range []string{"RMS_Energy", "Spectral_Centroid", "ZCR", "Novelty_Curve"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "0.2000")
	assert.Contains(t, out, "  - 1.16 seconds\n") // 50*512/22050
	assert.NotContains(t, out, NoPeaksMessage)
}

func TestWriteText_NoPeaks(t *testing.T) {
	var buf bytes.Buffer
	err := WriteText(&buf, Input{SourceName: "flat.wav", Features: testFeatures(40), Narrative: "n"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), NoPeaksMessage)
}

func TestWriteText_NoFeatures(t *testing.T) {
	assert.Error(t, WriteText(&bytes.Buffer{}, Input{}))
}

func TestWriteCSV(t *testing.T) {
	f := testFeatures(25)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, f))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 26)

	header := records[0]
	assert.Equal(t, []string{"Time_Seconds", "RMS_Energy", "Spectral_Centroid", "ZCR", "Novelty_Curve"}, header[:5])
	assert.Len(t, header, 18)
	assert.Equal(t, "MFCC_1", header[5])
	assert.Equal(t, "MFCC_13", header[17])

	assert.Equal(t, "0", records[1][0])
	assert.Equal(t, "0.2", records[1][1])
	assert.Equal(t, "12", records[1][17])
}

func TestWritePlots(t *testing.T) {
	f := testFeatures(200)
	f.Novelty[100] = 1

	var buf bytes.Buffer
	require.NoError(t, WritePlots(&buf, "song.wav", f))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1600, img.Bounds().Dx())
	assert.Equal(t, 1200, img.Bounds().Dy())
}

func TestBaseName(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	assert.Equal(t, "song_20240309_140506", BaseName("/music/song.mp3", at))
	assert.Equal(t, "my.track_20240309_140506", BaseName("my.track.wav", at))
}

func TestWriter_WriteAll(t *testing.T) {
	dir := t.TempDir()
	w := Writer{Dir: filepath.Join(dir, "out")}

	paths, err := w.WriteAll(context.Background(), "tone_20240309_140506", Input{
		SourceName: "tone.wav",
		Features:   testFeatures(60),
		Narrative:  "narrative",
	})
	require.NoError(t, err)

	for _, p := range []string{paths.Report, paths.CSV, paths.Plots} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Positive(t, info.Size(), p)
	}
	assert.Equal(t, filepath.Join(dir, "out", "tone_20240309_140506_visualization.mp4"), paths.Video)
	assert.NoFileExists(t, paths.Video)
}

func TestWriter_WriteAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Writer{Dir: t.TempDir()}.WriteAll(ctx, "x", Input{SourceName: "x", Features: testFeatures(10)})
	assert.ErrorIs(t, err, context.Canceled)
}
