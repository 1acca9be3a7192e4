package visualize

import (
	"context"
	"fmt"
	"os/exec"
)

// Player plays the source audio alongside a realtime render.
type Player interface {
	// Start begins playback.
	Start(ctx context.Context) error
	// Done is closed when playback ends.
	Done() <-chan struct{}
	// Close stops playback.
	Close() error
}

// FFplayPlayer plays a file through a headless ffplay process.
type FFplayPlayer struct {
	Bin  string // defaults to "ffplay"
	Path string

	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFFplayPlayer returns a player for path.
func NewFFplayPlayer(bin, path string) *FFplayPlayer {
	if bin == "" {
		bin = "ffplay"
	}
	return &FFplayPlayer{Bin: bin, Path: path, done: make(chan struct{})}
}

func (p *FFplayPlayer) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)
	p.cmd = exec.CommandContext(ctx, p.Bin, "-nodisp", "-autoexit", "-loglevel", "quiet", p.Path) //nolint:gosec
	if err := p.cmd.Start(); err != nil {
		p.cancel()
		close(p.done)
		return fmt.Errorf("start ffplay: %w", err)
	}
	go func() {
		_ = p.cmd.Wait()
		close(p.done)
	}()
	return nil
}

func (p *FFplayPlayer) Done() <-chan struct{} {
	return p.done
}

// Close kills playback if it is still running and waits for the process.
func (p *FFplayPlayer) Close() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	<-p.done
	return nil
}
