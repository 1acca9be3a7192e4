package visualize

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// FrameSink receives rendered frames for live preview.
type FrameSink interface {
	Publish(frame int, img *image.RGBA) error
}

// LiveFrameName is the conventional FileSink file name in an output directory.
const LiveFrameName = "live.png"

// FileSink writes every Every-th frame to Path as PNG, replacing it atomically
// so readers never see a partial image.
type FileSink struct {
	Path  string
	Every int
}

func (s FileSink) Publish(frame int, img *image.RGBA) error {
	if s.Every > 1 && frame%s.Every != 0 {
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.Path), ".live-*.png")
	if err != nil {
		return fmt.Errorf("live frame: %w", err)
	}
	if err := png.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("live frame encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("live frame: %w", err)
	}
	return os.Rename(tmp.Name(), s.Path)
}
