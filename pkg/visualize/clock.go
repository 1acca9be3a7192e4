package visualize

import (
	"context"
	"time"
)

// Clock supplies the playback position that drives frame selection.
type Clock interface {
	// Now returns the playback position in seconds.
	Now() float64
	// Tick blocks until the next frame is due.
	Tick(ctx context.Context) error
}

// OfflineClock advances exactly one frame per tick and never sleeps.
type OfflineClock struct {
	FrameDuration float64
	frames        int
}

func (c *OfflineClock) Now() float64 {
	return float64(c.frames) * c.FrameDuration
}

func (c *OfflineClock) Tick(ctx context.Context) error {
	c.frames++
	return ctx.Err()
}

// RealtimeClock reads wall time since the first call and paces ticks at fps.
type RealtimeClock struct {
	start  time.Time
	ticker *time.Ticker
	fps    int
}

// NewRealtimeClock starts a wall clock ticking fps times per second.
func NewRealtimeClock(fps int) *RealtimeClock {
	fps = max(fps, 1)
	return &RealtimeClock{
		start:  time.Now(),
		ticker: time.NewTicker(time.Second / time.Duration(fps)),
		fps:    fps,
	}
}

func (c *RealtimeClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

func (c *RealtimeClock) Tick(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ticker.C:
		return nil
	}
}

// Stop releases the ticker.
func (c *RealtimeClock) Stop() {
	c.ticker.Stop()
}
