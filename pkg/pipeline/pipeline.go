// Package pipeline runs analysis, commentary, reporting and rendering for one audio file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/nzoschke/soundscribe/pkg/analysis"
	"github.com/nzoschke/soundscribe/pkg/commentary"
	"github.com/nzoschke/soundscribe/pkg/config"
	"github.com/nzoschke/soundscribe/pkg/history"
	"github.com/nzoschke/soundscribe/pkg/logging"
	"github.com/nzoschke/soundscribe/pkg/observe"
	"github.com/nzoschke/soundscribe/pkg/report"
	"github.com/nzoschke/soundscribe/pkg/visualize"
)

var (
	// ErrNotFound means the input file does not exist.
	ErrNotFound = errors.New("audio file not found")
	// ErrCommentary means the model produced no usable commentary.
	ErrCommentary = errors.New("could not generate commentary")
)

// Stage names used for logs and metrics.
const (
	StageLoad       = "load"
	StageExtract    = "extract"
	StageCommentary = "commentary"
	StageReport     = "report"
	StageVideo      = "video"
)

// WaveformSuffix names the waveform sidecar served by the web viewer.
const WaveformSuffix = "_waveform.json"

// LiveFrameName is the preview image refreshed while rendering.
const LiveFrameName = visualize.LiveFrameName

// waveformPixelsPerSec is the resolution of the waveform sidecar.
const waveformPixelsPerSec = 100

// Options inject collaborators. Zero values use the defaults.
type Options struct {
	Provider   commentary.Provider      // overrides cfg.LLM
	Metrics    *observe.Metrics         // defaults to no-op instruments
	Logger     *slog.Logger             // defaults to slog.Default
	Progress   io.Writer                // user-facing step messages, defaults to io.Discard
	NewEncoder visualize.NewEncoderFunc // defaults to ffmpeg
	Now        func() time.Time
}

// Result describes a completed run.
type Result struct {
	RunID      string
	Base       string
	Paths      report.Paths // Paths.Video is empty when video is disabled
	Waveform   string
	Features   *analysis.Features
	Commentary *commentary.Result
	Video      visualize.Stats
}

// Run processes path according to cfg.
func Run(ctx context.Context, cfg config.Config, path string, opts Options) (*Result, error) {
	opts = withDefaults(opts)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	lock, err := history.Acquire(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	now := opts.Now()
	res := &Result{
		RunID: uuid.NewString(),
		Base:  report.BaseName(path, now),
	}
	logger := logging.WithRun(opts.Logger, res.RunID)
	logger.Info("run started", "file", path, "base", res.Base)
	name := filepath.Base(path)

	fmt.Fprintln(opts.Progress, "Step 1: Analyzing audio and generating commentary with AI...")
	var audio *analysis.Audio
	err = stage(ctx, opts.Metrics, logger, StageLoad, func() (err error) {
		audio, err = analysis.Load(ctx, path, analysis.LoadOptions{SampleRate: cfg.SampleRate, FFmpegBin: cfg.Video.FFmpegBin})
		return err
	})
	if err != nil {
		return nil, err
	}
	err = stage(ctx, opts.Metrics, logger, StageExtract, func() (err error) {
		res.Features, err = analysis.Extract(audio, analysis.DefaultParams())
		return err
	})
	if err != nil {
		return nil, err
	}

	err = stage(ctx, opts.Metrics, logger, StageCommentary, func() (err error) {
		res.Commentary, err = generate(ctx, cfg, opts, logger, name, res.Features)
		return err
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(opts.Progress, "Step 2: Generating textual report and feature files...")
	err = stage(ctx, opts.Metrics, logger, StageReport, func() (err error) {
		res.Paths, err = report.Writer{Dir: cfg.OutputDir}.WriteAll(ctx, res.Base, report.Input{
			SourceName: name,
			Features:   res.Features,
			Narrative:  res.Commentary.Narrative,
			AnalyzedAt: now,
		})
		if err != nil {
			return err
		}
		wf, err := analysis.GenerateWaveform(audio, waveformPixelsPerSec)
		if err != nil {
			return err
		}
		res.Waveform = filepath.Join(cfg.OutputDir, res.Base+WaveformSuffix)
		return wf.WriteJSON(res.Waveform)
	})
	if err != nil {
		return nil, err
	}

	if cfg.Video.Enabled {
		fmt.Fprintln(opts.Progress, "Step 3: Running audio visualization and exporting video...")
		err = stage(ctx, opts.Metrics, logger, StageVideo, func() (err error) {
			res.Video, err = render(ctx, cfg, opts, logger, path, res)
			return err
		})
		if err != nil {
			return nil, err
		}
	} else {
		res.Paths.Video = ""
	}

	if err := record(ctx, cfg, res, name, audio.Duration(), now); err != nil {
		logger.Warn("history not recorded", "error", err)
	}
	logger.Info("run finished", "frames", res.Video.Frames, "captions", len(res.Commentary.Items))
	return res, nil
}

func withDefaults(opts Options) Options {
	if opts.Metrics == nil {
		opts.Metrics = observe.Noop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// stage times fn, records it and logs the outcome.
func stage(ctx context.Context, m *observe.Metrics, logger *slog.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	m.RecordStage(ctx, name, elapsed)
	if err != nil {
		logger.Error("stage failed", "stage", name, "elapsed", elapsed, "error", err)
		return err
	}
	logger.Info("stage finished", "stage", name, "elapsed", elapsed)
	return nil
}

func generate(ctx context.Context, cfg config.Config, opts Options, logger *slog.Logger, name string, f *analysis.Features) (*commentary.Result, error) {
	provider := opts.Provider
	if provider == nil {
		p, err := commentary.NewProvider(commentary.ProviderConfig{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.Model,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCommentary, err)
		}
		provider = p
	}

	client := commentary.NewClient(provider,
		commentary.WithTimeout(cfg.LLM.Timeout()),
		commentary.WithRetryMaxAttempts(cfg.LLM.RetryAttempts),
		commentary.WithRetryBackoff(cfg.LLM.RetryBase(), cfg.LLM.RetryMax()),
		commentary.WithLogger(logger),
		commentary.WithObserver(func(status string) {
			opts.Metrics.RecordLLMRequest(ctx, provider.Name(), status)
		}),
	)
	gen := commentary.NewGenerator(client, cfg.Commentary.IntervalSeconds, logger)
	gen.Temperature = cfg.LLM.Temperature

	res, err := gen.Generate(ctx, name, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCommentary, err)
	}
	if res == nil || len(res.Items) == 0 || res.Narrative == "" {
		return nil, fmt.Errorf("%w: model returned no commentary items", ErrCommentary)
	}
	return res, nil
}

func render(ctx context.Context, cfg config.Config, opts Options, logger *slog.Logger, path string, res *Result) (visualize.Stats, error) {
	vopts := visualize.Options{
		FFmpegBin:  cfg.Video.FFmpegBin,
		FFplayBin:  cfg.Video.FFplayBin,
		AudioPath:  path,
		MuxAudio:   cfg.Video.MuxAudio,
		Realtime:   cfg.Video.Realtime,
		NewEncoder: opts.NewEncoder,
		Logger:     logger,
		OnFrame:    func() { opts.Metrics.RecordFrame(ctx) },
	}
	if cfg.Video.LivePreview {
		vopts.Sink = visualize.FileSink{
			Path:  filepath.Join(cfg.OutputDir, LiveFrameName),
			Every: visualize.FPS(res.Features),
		}
	}
	v, err := visualize.New(vopts)
	if err != nil {
		return visualize.Stats{}, err
	}
	return v.Run(ctx, res.Features, res.Commentary.Items, res.Paths.Video)
}

func record(ctx context.Context, cfg config.Config, res *Result, name string, duration float64, now time.Time) error {
	store, err := history.Open(ctx, cfg.OutputDir)
	if err != nil {
		return err
	}
	defer store.Close()

	artifacts := history.Artifacts{
		Report:   filepath.Base(res.Paths.Report),
		CSV:      filepath.Base(res.Paths.CSV),
		Plots:    filepath.Base(res.Paths.Plots),
		Waveform: filepath.Base(res.Waveform),
	}
	if res.Paths.Video != "" {
		artifacts.Video = filepath.Base(res.Paths.Video)
	}
	return store.Record(ctx, history.Run{
		ID:        res.RunID,
		Base:      res.Base,
		Source:    name,
		Duration:  duration,
		Tonality:  res.Commentary.Tonality,
		Narrative: res.Commentary.Narrative,
		Captions:  len(res.Commentary.Items),
		Frames:    res.Video.Frames,
		Artifacts: artifacts,
		CreatedAt: now,
	})
}
