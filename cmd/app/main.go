// CLI for audio analysis, AI commentary and visualization.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nzoschke/soundscribe/pkg/config"
	"github.com/nzoschke/soundscribe/pkg/logging"
	"github.com/nzoschke/soundscribe/pkg/observe"
	"github.com/nzoschke/soundscribe/pkg/pipeline"
	"github.com/spf13/cobra"
)

var version = "dev"

// errExit signals a failure whose message was already printed.
var errExit = errors.New("exit")

// flags are the settings shared by every command.
type flags struct {
	config    string
	out       string
	provider  string
	model     string
	noVideo   bool
	realtime  bool
	logLevel  string
	logFormat string
}

func newRootCommand() *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:           "app <audio-file>",
		Short:         "Analyze a piece of music, narrate it with an LLM and render a video",
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Usage: app <path_to_audio_file>")
				return errExit
			}
			return runAnalyze(cmd, f, args[0])
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.config, "config", "c", "", "Configuration file path (.yaml or .toml)")
	pf.StringVarP(&f.out, "out", "o", "", "Output directory")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&f.logFormat, "log-format", "", "Log format (auto, text, json)")
	rootCmd.Flags().StringVar(&f.provider, "provider", "", "LLM provider")
	rootCmd.Flags().StringVar(&f.model, "model", "", "LLM model")
	rootCmd.Flags().BoolVar(&f.noVideo, "no-video", false, "Skip the visualization video")
	rootCmd.Flags().BoolVar(&f.realtime, "realtime", false, "Render at playback speed and play the audio")

	rootCmd.AddCommand(newServeCommand(f))
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errExit) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, the environment and flags.
func loadConfig(cmd *cobra.Command, f *flags) (config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		var err error
		if cfg, err = config.Load(f.config); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv()

	changed := cmd.Flags().Changed
	if changed("out") {
		cfg.OutputDir = f.out
	}
	if changed("provider") {
		cfg.LLM.Provider = f.provider
	}
	if changed("model") {
		cfg.LLM.Model = f.model
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if changed("no-video") && f.noVideo {
		cfg.Video.Enabled = false
	}
	if changed("realtime") {
		cfg.Video.Realtime = f.realtime
	}
	cfg.ResolveAPIKey()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func runAnalyze(cmd *cobra.Command, f *flags, path string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}

	provider, err := observe.NewProvider(version)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer shutdownMetrics(cmd.Context(), provider, logger)
	metrics, err := observe.NewMetrics(provider)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res, err := pipeline.Run(ctx, cfg, path, pipeline.Options{
		Metrics:  metrics,
		Logger:   logger,
		Progress: out,
	})
	switch {
	case errors.Is(err, pipeline.ErrNotFound):
		fmt.Fprintf(out, "Error: The file '%s' was not found.\n", path)
		return errExit
	case errors.Is(err, pipeline.ErrCommentary):
		logger.Error("commentary failed", "error", err)
		fmt.Fprintln(out, "Could not generate all data. Exiting.")
		return errExit
	case err != nil:
		return err
	}

	fmt.Fprintln(out, "\nProcess complete. Check the directory for the generated files:")
	fmt.Fprintln(out, renderTable([]string{"Artifact", "File"}, artifactRows(res), nil))

	rm, err := provider.Collect(cmd.Context())
	if err != nil {
		logger.Warn("collect metrics", "error", err)
		return nil
	}
	fmt.Fprintln(out, renderTable([]string{"Stage", "Duration"}, timingRows(observe.StageTimings(rm)), []columnAlignment{alignLeft, alignRight}))
	return nil
}

// shutdownMetrics stops the meter provider. Failure only costs the timings table.
func shutdownMetrics(ctx context.Context, s interface{ Shutdown(context.Context) error }, logger *slog.Logger) {
	if err := s.Shutdown(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("metrics shutdown", "error", err)
	}
}

func artifactRows(res *pipeline.Result) [][]string {
	rows := [][]string{
		{"Report", filepath.Base(res.Paths.Report)},
		{"Feature data", filepath.Base(res.Paths.CSV)},
		{"Feature plots", filepath.Base(res.Paths.Plots)},
	}
	if res.Paths.Video != "" {
		rows = append(rows, []string{"Video", filepath.Base(res.Paths.Video)})
	}
	if res.Waveform != "" {
		rows = append(rows, []string{"Waveform", filepath.Base(res.Waveform)})
	}
	return rows
}

func timingRows(timings []observe.StageTiming) [][]string {
	rows := make([][]string, 0, len(timings))
	for _, st := range timings {
		rows = append(rows, []string{st.Stage, st.Duration.Round(time.Millisecond).String()})
	}
	return rows
}
