package visualize

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"testing"

	"github.com/nzoschke/soundscribe/pkg/analysis"
	"github.com/nzoschke/soundscribe/pkg/analysis/analysistest"
	"github.com/nzoschke/soundscribe/pkg/commentary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushed(v uint8, height int) []color.RGBA {
	col := make([]color.RGBA, height)
	for i := range col {
		col[i] = color.RGBA{R: v, A: 0xff}
	}
	return col
}

func TestRing(t *testing.T) {
	r := NewRing(4, 2)
	assert.Equal(t, 0, r.Len())
	for x := range 4 {
		assert.Nil(t, r.Column(x))
	}

	r.Push(pushed(1, 2))
	r.Push(pushed(2, 2))
	assert.Equal(t, 2, r.Len())
	assert.Nil(t, r.Column(0))
	assert.Nil(t, r.Column(1))
	assert.Equal(t, uint8(1), r.Column(2)[0].R)
	assert.Equal(t, uint8(2), r.Column(3)[0].R)

	for v := uint8(3); v <= 6; v++ {
		r.Push(pushed(v, 2))
	}
	assert.Equal(t, 4, r.Len())
	got := []uint8{}
	for x := range 4 {
		got = append(got, r.Column(x)[1].R)
	}
	assert.Equal(t, []uint8{3, 4, 5, 6}, got)
	assert.Nil(t, r.Column(-1))
	assert.Nil(t, r.Column(4))
}

func TestRing_Draw(t *testing.T) {
	r := NewRing(3, 2)
	r.Push(pushed(9, 2))

	bg := color.RGBA{B: 7, A: 0xff}
	img := image.NewRGBA(image.Rect(0, 0, 3, 4))
	r.Draw(img, image.Pt(0, 1), bg)

	assert.Equal(t, bg, img.RGBAAt(0, 1))
	assert.Equal(t, bg, img.RGBAAt(1, 2))
	assert.Equal(t, color.RGBA{R: 9, A: 0xff}, img.RGBAAt(2, 1))
	assert.Equal(t, color.RGBA{}, img.RGBAAt(0, 0))
}

func TestMeterColumn(t *testing.T) {
	col := meterColumn(1, 200, background)
	assert.Equal(t, meterGreen, col[199])
	assert.Equal(t, meterYellow, col[200-11*10])
	assert.Equal(t, meterRed, col[0])

	col = meterColumn(0.5, 200, background)
	assert.Equal(t, meterGreen, col[199])
	assert.Equal(t, meterGreen, col[200-10*10])
	assert.Equal(t, background, col[200-10*10-1])

	col = meterColumn(0, 200, background)
	assert.Equal(t, background, col[199])
}

func TestSpectrogramColumn(t *testing.T) {
	db := []float64{0, -40, -80, -80}
	col := spectrogramColumn(db, 8, background)
	assert.Equal(t, uint8(255), col[7].R) // lowest band at the bottom
	assert.Equal(t, uint8(127), col[5].G)
	assert.Equal(t, uint8(0), col[0].B)
}

func TestChromaColumn(t *testing.T) {
	chroma := make([]float64, 12)
	chroma[0] = 1
	col := chromaColumn(chroma, 24, background)
	assert.Equal(t, color.RGBA{R: 255, B: 255, A: 0xff}, col[0])
	assert.Equal(t, color.RGBA{A: 0xff}, col[23])
}

func TestCaptions(t *testing.T) {
	c := NewCaptions([]commentary.Item{
		{Time: 20, Commentary: "third"},
		{Time: 0, Commentary: "first"},
		{Time: 10, Commentary: "second"},
	})

	assert.Equal(t, "first", c.At(0))
	assert.Equal(t, "first", c.At(9.9))
	// jumping past two items picks the most recent one
	assert.Equal(t, "third", c.At(25))
	assert.Equal(t, "third", c.At(12))
}

func TestCaptions_Empty(t *testing.T) {
	c := NewCaptions(nil)
	assert.Equal(t, "", c.At(100))
}

func TestTimeline(t *testing.T) {
	fo, err := loadFonts()
	require.NoError(t, err)

	tl := NewTimeline(40, timelineHeight)
	for i := range 12 * 10 {
		tl.Advance(float64(i) / 10)
	}
	assert.Equal(t, []string{"00:00", "00:05", "00:10"}, tl.Marks())

	img := image.NewRGBA(image.Rect(0, 0, 40, timelineHeight))
	tl.Draw(img, image.Point{}, fo.label, timelineColor, labelColor)
	assert.Len(t, tl.Marks(), 1, "marks scrolled past the left edge are dropped")
	// newest tick is 19 frames old: t=10.0 .. 11.9
	assert.Equal(t, timelineColor, img.RGBAAt(40-1-19, timelineHeight/2))
}

func TestClockLabel(t *testing.T) {
	assert.Equal(t, "00:05", clockLabel(5))
	assert.Equal(t, "01:05", clockLabel(65))
	assert.Equal(t, "10:00", clockLabel(600))
}

func TestWrapText(t *testing.T) {
	fo, err := loadFonts()
	require.NoError(t, err)

	text := "the quick brown fox jumps over the lazy dog while the band keeps playing a long sustained chord"
	lines := wrapText(text, fo.caption, 200)
	require.Greater(t, len(lines), 1)
	for _, l := range lines {
		assert.LessOrEqual(t, textWidth(fo.caption, l), 200, l)
	}
	assert.Nil(t, wrapText("   ", fo.caption, 200))
	assert.Equal(t, []string{"supercalifragilistic"}, wrapText("supercalifragilistic", fo.caption, 10))
}

func TestFrameIndex(t *testing.T) {
	assert.Equal(t, 0, frameIndex(0, 0.1, 10))
	assert.Equal(t, 3, frameIndex(0.35, 0.1, 10))
	assert.Equal(t, 9, frameIndex(5, 0.1, 10))
	assert.Equal(t, 0, frameIndex(-1, 0.1, 10))
}

type captureEncoder struct {
	opts   EncoderOptions
	frames int
	closed bool
}

func (c *captureEncoder) WriteFrame(img *image.RGBA) error {
	if img.Rect.Dx() != c.opts.Width || img.Rect.Dy() != c.opts.Height {
		return assert.AnError
	}
	c.frames++
	return nil
}

func (c *captureEncoder) Close() error {
	c.closed = true
	return nil
}

func toneFeatures(t *testing.T, seconds float64) *analysis.Features {
	t.Helper()
	a := &analysis.Audio{Samples: analysistest.Tone(analysis.DefaultSampleRate, seconds, 440), SampleRate: analysis.DefaultSampleRate}
	f, err := analysis.Extract(a, analysis.DefaultParams())
	require.NoError(t, err)
	return f
}

func newCapture(enc *captureEncoder) NewEncoderFunc {
	return func(_ context.Context, opts EncoderOptions) (Encoder, error) {
		enc.opts = opts
		return enc, nil
	}
}

func TestVisualizer_RunOffline(t *testing.T) {
	f := toneFeatures(t, 2)
	enc := &captureEncoder{}
	dir := t.TempDir()
	live := filepath.Join(dir, "live.png")

	var onFrame int
	v, err := New(Options{
		NewEncoder: newCapture(enc),
		Sink:       FileSink{Path: live, Every: 10},
		OnFrame:    func() { onFrame++ },
	})
	require.NoError(t, err)

	stats, err := v.Run(context.Background(), f, []commentary.Item{{Time: 0.5, Commentary: "a steady A"}}, filepath.Join(dir, "out.mp4"))
	require.NoError(t, err)

	assert.True(t, enc.closed)
	assert.Equal(t, 43, stats.FPS)
	assert.Equal(t, 43, enc.opts.FPS)
	assert.InDelta(t, f.NumFrames(), stats.Frames, 1)
	assert.Equal(t, stats.Frames, enc.frames)
	assert.Equal(t, stats.Frames, onFrame)

	r, err := os.Open(live)
	require.NoError(t, err)
	defer r.Close()
	img, err := png.Decode(r)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, Width, Height), img.Bounds())
}

func TestVisualizer_RunCancelled(t *testing.T) {
	f := toneFeatures(t, 1)
	enc := &captureEncoder{}
	v, err := New(Options{NewEncoder: newCapture(enc)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := v.Run(ctx, f, nil, "out.mp4")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Frames)
	assert.True(t, enc.closed)
}

func TestScene_Render(t *testing.T) {
	f := toneFeatures(t, 1)
	fo, err := loadFonts()
	require.NoError(t, err)

	sc := newScene(f, nil, fo)
	var img *image.RGBA
	for i := range 5 {
		img = sc.render(float64(i) * f.FrameDuration())
	}
	// separators
	assert.Equal(t, labelColor, img.RGBAAt(Width/2, specHeight))
	assert.Equal(t, labelColor, img.RGBAAt(Width/2, specHeight+meterHeight))
	// unwritten spectrogram columns stay background
	assert.Equal(t, background, img.RGBAAt(Width/2, specHeight/2))
	// the loudest frame lights the bottom meter bar
	assert.NotEqual(t, background, img.RGBAAt(Width-1, specHeight+meterHeight-2))
}

func TestEncoderArgs(t *testing.T) {
	args := encoderArgs(EncoderOptions{Path: "out.mp4", Width: 1000, Height: 700, FPS: 43})
	assert.Contains(t, args, "1000x700")
	assert.Contains(t, args, "libx264")
	assert.Contains(t, args, "yuv420p")
	assert.Equal(t, "out.mp4", args[len(args)-1])
	assert.False(t, slices.Contains(args, "-shortest"))

	args = encoderArgs(EncoderOptions{Path: "out.mp4", Width: 10, Height: 10, FPS: 1, AudioPath: "in.wav"})
	assert.True(t, slices.Contains(args, "in.wav"))
	assert.True(t, slices.Contains(args, "-shortest"))
}

func TestFFmpegEncoder(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	out := filepath.Join(t.TempDir(), "out.mp4")
	enc, err := NewFFmpegEncoder(context.Background(), EncoderOptions{Path: out, Width: 64, Height: 48, FPS: 10})
	require.NoError(t, err)

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for range 10 {
		require.NoError(t, enc.WriteFrame(img))
	}
	assert.Error(t, enc.WriteFrame(image.NewRGBA(image.Rect(0, 0, 8, 8))))
	require.NoError(t, enc.Close())

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
