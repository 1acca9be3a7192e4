package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nzoschke/soundscribe/pkg/history"
	"github.com/nzoschke/soundscribe/pkg/logging"
	"github.com/nzoschke/soundscribe/pkg/server"
	"github.com/spf13/cobra"
)

func newServeCommand(f *flags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web viewer over the output directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			store, err := history.Open(ctx, cfg.OutputDir)
			if err != nil {
				return err
			}
			defer store.Close()

			s := server.New(cfg.OutputDir, store)
			s.Use(requestLogger(logger))

			errCh := make(chan error, 1)
			go func() { errCh <- s.Start(cfg.Server.Addr) }()
			logger.Info("serving", "addr", cfg.Server.Addr, "dir", cfg.OutputDir)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer done()
			if err := s.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	return cmd
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			logger.Debug("request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", c.Response().Status,
				"elapsed", time.Since(start),
			)
			return nil
		}
	}
}
