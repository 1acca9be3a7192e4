// Package visualize renders the scrolling spectrogram, level meter, chroma and
// caption display and records every frame to video.
package visualize

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"time"

	"github.com/nzoschke/soundscribe/pkg/analysis"
	"github.com/nzoschke/soundscribe/pkg/commentary"
)

// Canvas layout in pixels, top to bottom.
const (
	Width  = 1000
	Height = 700

	specHeight     = 175
	meterHeight    = 175
	chromaHeight   = 175
	timelineHeight = 25
	captionHeight  = 150

	timelineRaise = 5 // timeline overlaps the chroma strip by this much
	captionDrop   = 5
	separator     = 3
	captionMargin = 20
)

var (
	background    = color.RGBA{A: 0xff}
	labelColor    = color.RGBA{R: 200, G: 200, B: 200, A: 0xff}
	timelineColor = color.RGBA{R: 150, G: 150, B: 150, A: 0xff}

	freqLabels  = []string{"125 Hz", "250 Hz", "500 Hz", "1k Hz", "2k Hz", "4k Hz", "8k Hz", "16k Hz"}
	meterLabels = []string{"-6 dB", "-12 dB", "-24 dB"}
)

// Options configure a Visualizer.
type Options struct {
	FFmpegBin  string
	FFplayBin  string
	AudioPath  string // played back in realtime mode and muxed into the video
	MuxAudio   bool
	Realtime   bool
	Sink       FrameSink      // optional live preview
	NewEncoder NewEncoderFunc // defaults to NewFFmpegEncoder
	Logger     *slog.Logger
	OnFrame    func() // called after each encoded frame
}

// Stats summarize one render.
type Stats struct {
	Frames  int           `json:"frames"`
	FPS     int           `json:"fps"`
	Elapsed time.Duration `json:"elapsed"`
}

// Visualizer renders feature series to video.
type Visualizer struct {
	opts  Options
	fonts *fonts
}

// New loads fonts and applies defaults.
func New(opts Options) (*Visualizer, error) {
	f, err := loadFonts()
	if err != nil {
		return nil, err
	}
	if opts.NewEncoder == nil {
		opts.NewEncoder = NewFFmpegEncoder
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Visualizer{opts: opts, fonts: f}, nil
}

// FPS returns the video frame rate for f: one frame per chroma frame, truncated.
func FPS(f *analysis.Features) int {
	fd := f.FrameDuration()
	if fd <= 0 {
		return 0
	}
	return max(int(1/fd), 1)
}

// Run renders f with captions from items into outPath. The loop ends when the
// audio duration is reached, playback finishes in realtime mode, or ctx is
// cancelled. The video is finalized in every case.
func (v *Visualizer) Run(ctx context.Context, f *analysis.Features, items []commentary.Item, outPath string) (stats Stats, err error) {
	fd := f.FrameDuration()
	if fd <= 0 {
		return stats, errors.New("visualize: no chroma frames")
	}
	stats.FPS = FPS(f)
	start := time.Now()

	encOpts := EncoderOptions{
		FFmpegBin: v.opts.FFmpegBin,
		Path:      outPath,
		Width:     Width,
		Height:    Height,
		FPS:       stats.FPS,
	}
	if v.opts.MuxAudio {
		encOpts.AudioPath = v.opts.AudioPath
	}
	// the encoder outlives cancellation so a quit still yields a playable file
	enc, err := v.opts.NewEncoder(context.WithoutCancel(ctx), encOpts)
	if err != nil {
		return stats, fmt.Errorf("visualize: %w", err)
	}
	defer func() {
		if cerr := enc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("visualize: %w", cerr)
		}
		stats.Elapsed = time.Since(start)
	}()

	var (
		clock Clock
		done  <-chan struct{}
	)
	if v.opts.Realtime {
		player := NewFFplayPlayer(v.opts.FFplayBin, v.opts.AudioPath)
		if err := player.Start(ctx); err != nil {
			return stats, fmt.Errorf("visualize: %w", err)
		}
		defer player.Close()
		rc := NewRealtimeClock(stats.FPS)
		defer rc.Stop()
		clock, done = rc, player.Done()
	} else {
		clock = &OfflineClock{FrameDuration: fd}
	}

	sc := newScene(f, items, v.fonts)
	v.opts.Logger.Debug("render started", "fps", stats.FPS, "frames", len(f.Chroma[0]), "realtime", v.opts.Realtime)

	for {
		if finished(done) {
			break
		}
		t := clock.Now()
		if t >= f.Duration {
			break
		}

		img := sc.render(t)
		if err := enc.WriteFrame(img); err != nil {
			return stats, fmt.Errorf("visualize: %w", err)
		}
		if v.opts.Sink != nil {
			if err := v.opts.Sink.Publish(stats.Frames, img); err != nil {
				v.opts.Logger.Warn("live frame failed", "error", err)
			}
		}
		stats.Frames++
		if v.opts.OnFrame != nil {
			v.opts.OnFrame()
		}

		if err := clock.Tick(ctx); err != nil {
			v.opts.Logger.Info("render stopped", "frames", stats.Frames, "reason", err)
			break
		}
	}

	v.opts.Logger.Debug("render finished", "frames", stats.Frames)
	return stats, nil
}

func finished(done <-chan struct{}) bool {
	if done == nil {
		return false
	}
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// scene owns the per-strip state between frames.
type scene struct {
	f             *analysis.Features
	rms           []float64
	frames        int
	frameDuration float64
	fonts         *fonts

	spec     *Ring
	meter    *Ring
	chroma   *Ring
	timeline *Timeline
	captions *Captions

	img *image.RGBA
}

func newScene(f *analysis.Features, items []commentary.Item, fo *fonts) *scene {
	return &scene{
		f:             f,
		rms:           analysis.MinMaxNormalize(f.RMS),
		frames:        len(f.Chroma[0]),
		frameDuration: f.FrameDuration(),
		fonts:         fo,
		spec:          NewRing(Width, specHeight),
		meter:         NewRing(Width, meterHeight),
		chroma:        NewRing(Width, chromaHeight),
		timeline:      NewTimeline(Width, timelineHeight),
		captions:      NewCaptions(items),
		img:           image.NewRGBA(image.Rect(0, 0, Width, Height)),
	}
}

// frameIndex maps playback time to a feature column, clamped to the valid range.
func frameIndex(t, frameDuration float64, frames int) int {
	i := int(math.Floor(t / frameDuration))
	return min(max(i, 0), frames-1)
}

// render advances every strip by one column for playback time t and composes the
// canvas. The returned image is reused by the next call.
func (s *scene) render(t float64) *image.RGBA {
	i := frameIndex(t, s.frameDuration, s.frames)

	s.spec.Push(spectrogramColumn(column(s.f.MelDB, i), specHeight, background))
	level := 0.0
	if i < len(s.rms) {
		level = s.rms[i]
	}
	s.meter.Push(meterColumn(level, meterHeight, background))
	s.chroma.Push(chromaColumn(column(s.f.Chroma, i), chromaHeight, background))
	caption := s.captions.At(t)
	s.timeline.Advance(t)

	img := s.img
	draw.Draw(img, img.Rect, image.NewUniform(background), image.Point{}, draw.Src)

	y := 0
	s.spec.Draw(img, image.Pt(0, y), background)
	y += specHeight
	s.meter.Draw(img, image.Pt(0, y), background)
	y += meterHeight
	s.chroma.Draw(img, image.Pt(0, y), background)
	y += chromaHeight

	timelineY := y - timelineRaise
	fillRect(img, image.Rect(0, timelineY, Width, timelineY+timelineHeight), background)
	s.timeline.Draw(img, image.Pt(0, timelineY), s.fonts.label, timelineColor, labelColor)
	y += timelineHeight - timelineRaise

	s.drawCaption(img, y+captionDrop, caption)

	for _, ly := range []int{specHeight, specHeight + meterHeight, specHeight + meterHeight + chromaHeight - timelineRaise} {
		fillRect(img, image.Rect(0, ly-separator/2, Width, ly-separator/2+separator), labelColor)
	}
	s.drawLabels(img)
	return img
}

func (s *scene) drawCaption(img *image.RGBA, top int, caption string) {
	face := s.fonts.caption
	lines := wrapText(caption, face, Width-captionMargin)
	lh := textHeight(face)
	spacing := lh + 5
	y := top + (captionHeight-len(lines)*spacing)/2
	for _, line := range lines {
		x := (Width - textWidth(face, line)) / 2
		drawText(img, face, x, y, line, labelColor)
		y += spacing
	}
}

func (s *scene) drawLabels(img *image.RGBA) {
	face := s.fonts.label
	lh := textHeight(face)

	n := len(freqLabels)
	for i, l := range freqLabels {
		y := specHeight*(n-1-i)/n - lh/2
		drawText(img, face, 5, y, l, labelColor)
	}
	for i, l := range meterLabels {
		y := specHeight + meterHeight*(i+1)/(len(meterLabels)+1) - lh/2
		drawText(img, face, 5, y, l, labelColor)
	}
	band := float64(chromaHeight) / float64(len(analysis.PitchClasses))
	for i, l := range analysis.PitchClasses {
		y := specHeight + meterHeight + int(float64(i)*band+band/2) - lh/2
		drawText(img, face, 5, y, l, labelColor)
	}
}

func column(m [][]float64, i int) []float64 {
	col := make([]float64, len(m))
	for r, row := range m {
		if i < len(row) {
			col[r] = row[i]
		}
	}
	return col
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}
