// Package history records completed runs in a SQLite database inside the output directory.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DBName is the database file created in the output directory.
const DBName = "soundscribe.db"

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Artifacts are paths relative to the output directory.
type Artifacts struct {
	Report   string `json:"report"`
	CSV      string `json:"csv"`
	Plots    string `json:"plots"`
	Video    string `json:"video,omitempty"`
	Waveform string `json:"waveform,omitempty"`
}

// Run is one completed pipeline execution.
type Run struct {
	ID        string    `json:"id"`
	Base      string    `json:"base"`
	Source    string    `json:"source"`
	Duration  float64   `json:"duration"` // seconds of audio
	Tonality  string    `json:"tonality"`
	Narrative string    `json:"narrative"`
	Captions  int       `json:"captions"`
	Frames    int       `json:"frames"`
	Artifacts Artifacts `json:"artifacts"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists runs.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	base       TEXT NOT NULL,
	source     TEXT NOT NULL,
	duration   REAL NOT NULL,
	tonality   TEXT NOT NULL,
	narrative  TEXT NOT NULL,
	captions   INTEGER NOT NULL,
	frames     INTEGER NOT NULL,
	artifacts  TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Open creates or connects to the database in dir.
func Open(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure output dir: %w", err)
	}
	dbPath := filepath.Join(dir, DBName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts r, replacing any run with the same id.
func (s *Store) Record(ctx context.Context, r Run) error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("record run: id required")
	}
	artifacts, err := json.Marshal(r.Artifacts)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO runs (id, base, source, duration, tonality, narrative, captions, frames, artifacts, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.Base, r.Source, r.Duration, r.Tonality, r.Narrative, r.Captions, r.Frames,
			string(artifacts), r.CreatedAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		return nil
	})
}

const selectRuns = `SELECT id, base, source, duration, tonality, narrative, captions, frames, artifacts, created_at FROM runs`

// List returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := selectRuns + ` ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns the run with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %q: %w", id, err)
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r         Run
		artifacts string
		created   string
	)
	if err := sc.Scan(&r.ID, &r.Base, &r.Source, &r.Duration, &r.Tonality, &r.Narrative,
		&r.Captions, &r.Frames, &artifacts, &created); err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal([]byte(artifacts), &r.Artifacts); err != nil {
		return Run{}, fmt.Errorf("decode artifacts: %w", err)
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return Run{}, fmt.Errorf("decode created_at: %w", err)
	}
	r.CreatedAt = t
	return r, nil
}
