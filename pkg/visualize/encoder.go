package visualize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Encoder consumes rendered frames.
type Encoder interface {
	WriteFrame(img *image.RGBA) error
	Close() error
}

// EncoderOptions configure a video encoder.
type EncoderOptions struct {
	FFmpegBin string // defaults to "ffmpeg"
	Path      string
	Width     int
	Height    int
	FPS       int
	AudioPath string // muxed in when set
}

// NewEncoderFunc opens an Encoder. The visualizer takes one so tests can capture frames.
type NewEncoderFunc func(ctx context.Context, opts EncoderOptions) (Encoder, error)

// FFmpegEncoder pipes raw RGBA frames into an ffmpeg process producing H.264 MP4.
type FFmpegEncoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	size   image.Point
	frames int
	closed bool
}

// NewFFmpegEncoder starts ffmpeg writing opts.Path.
func NewFFmpegEncoder(ctx context.Context, opts EncoderOptions) (Encoder, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.FPS <= 0 {
		return nil, fmt.Errorf("ffmpeg encoder: invalid geometry %dx%d@%d", opts.Width, opts.Height, opts.FPS)
	}
	bin := opts.FFmpegBin
	if bin == "" {
		bin = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, bin, encoderArgs(opts)...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	return &FFmpegEncoder{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		size:   image.Pt(opts.Width, opts.Height),
	}, nil
}

func encoderArgs(opts EncoderOptions) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-r", strconv.Itoa(opts.FPS),
		"-i", "-",
	}
	if opts.AudioPath != "" {
		args = append(args, "-i", opts.AudioPath, "-map", "0:v", "-map", "1:a", "-c:a", "aac", "-shortest")
	}
	return append(args,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(opts.FPS),
		opts.Path,
	)
}

// WriteFrame writes one frame. img must match the encoder size.
func (e *FFmpegEncoder) WriteFrame(img *image.RGBA) error {
	if e.closed {
		return errors.New("ffmpeg encoder: closed")
	}
	if img.Rect.Size() != e.size {
		return fmt.Errorf("ffmpeg encoder: frame %v, want %v", img.Rect.Size(), e.size)
	}
	if _, err := e.stdin.Write(img.Pix); err != nil {
		return fmt.Errorf("ffmpeg write frame %d: %w: %s", e.frames, err, e.stderrText())
	}
	e.frames++
	return nil
}

// Close flushes stdin and waits for ffmpeg to finish the file.
func (e *FFmpegEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	_ = e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, e.stderrText())
	}
	return nil
}

func (e *FFmpegEncoder) stderrText() string {
	return strings.TrimSpace(e.stderr.String())
}
