// Package server provides the Echo web server for browsing past runs.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nzoschke/soundscribe/pkg/history"
	"github.com/nzoschke/soundscribe/pkg/visualize"
)

//go:embed static/index.html
var static embed.FS

// RunDetail is a run plus its waveform sidecar.
type RunDetail struct {
	history.Run
	Waveform json.RawMessage `json:"waveform,omitempty"`
}

// Server serves the output directory and run history.
type Server struct {
	dir   string
	store *history.Store
	echo  *echo.Echo
}

// New builds a server over dir. store may be nil, in which case the history
// endpoints return empty results.
func New(dir string, store *history.Store) *Server {
	s := &Server{dir: dir, store: store}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Routes
	e.GET("/", s.serveIndex)
	e.GET("/api/runs", s.listRuns)
	e.GET("/api/runs/:id", s.getRun)
	e.GET("/api/files/*", s.serveFile)
	e.GET("/api/live.png", s.serveLive)

	s.echo = e
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// Use installs extra middleware such as request logging.
func (s *Server) Use(mw ...echo.MiddlewareFunc) { s.echo.Use(mw...) }

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) serveIndex(c echo.Context) error {
	data, err := static.ReadFile("static/index.html")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.HTMLBlob(http.StatusOK, data)
}

// listRuns returns recorded runs, newest first.
func (s *Server) listRuns(c echo.Context) error {
	if s.store == nil {
		return c.JSON(http.StatusOK, []history.Run{})
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	runs, err := s.store.List(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, runs)
}

// getRun returns one run with its waveform embedded when the sidecar is readable.
func (s *Server) getRun(c echo.Context) error {
	if s.store == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	run, err := s.store.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	detail := RunDetail{Run: run}
	if name := run.Artifacts.Waveform; name != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(name)))
		if err == nil && json.Valid(data) {
			detail.Waveform = data
		}
	}
	return c.JSON(http.StatusOK, detail)
}

// serveFile serves run artifacts from the output directory.
func (s *Server) serveFile(c echo.Context) error {
	decodedPath, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid path encoding")
	}

	// Security: prevent directory traversal
	if strings.Contains(decodedPath, "..") || filepath.IsAbs(decodedPath) {
		return echo.NewHTTPError(http.StatusForbidden, "invalid path")
	}

	ext := strings.ToLower(filepath.Ext(decodedPath))
	if !isArtifact(ext) {
		return echo.NewHTTPError(http.StatusForbidden, "file type not allowed")
	}

	fullPath := filepath.Join(s.dir, decodedPath)
	info, err := os.Stat(fullPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "file not found")
	}
	if info.IsDir() {
		return echo.NewHTTPError(http.StatusForbidden, "cannot serve directory")
	}
	return c.File(fullPath)
}

// serveLive serves the latest preview frame without caching.
func (s *Server) serveLive(c echo.Context) error {
	path := filepath.Join(s.dir, visualize.LiveFrameName)
	if _, err := os.Stat(path); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no live frame")
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.File(path)
}

// isArtifact returns true if the extension is one the pipeline writes.
func isArtifact(ext string) bool {
	switch ext {
	case ".txt", ".csv", ".png", ".mp4", ".json":
		return true
	default:
		return false
	}
}
