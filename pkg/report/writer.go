package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Artifact file suffixes appended to the run base name.
const (
	ReportSuffix = "_Analysis_Report.txt"
	CSVSuffix    = "_Feature_Data.csv"
	PlotsSuffix  = "_Feature_Plots.png"
	VideoSuffix  = "_visualization.mp4"
)

// BaseName returns "<stem>_<YYYYMMDD_HHMMSS>" for a source file.
func BaseName(source string, at time.Time) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return stem + "_" + at.Format("20060102_150405")
}

// Paths locates every artifact of one run.
type Paths struct {
	Report string `json:"report"`
	CSV    string `json:"csv"`
	Plots  string `json:"plots"`
	Video  string `json:"video"`
}

// PathsFor returns the artifact paths for base inside dir.
func PathsFor(dir, base string) Paths {
	return Paths{
		Report: filepath.Join(dir, base+ReportSuffix),
		CSV:    filepath.Join(dir, base+CSVSuffix),
		Plots:  filepath.Join(dir, base+PlotsSuffix),
		Video:  filepath.Join(dir, base+VideoSuffix),
	}
}

// Writer writes the static artifacts of a run into Dir.
type Writer struct {
	Dir string
}

// WriteAll writes the text report, CSV table and plots concurrently.
// The returned Paths include the video path, which the visualizer fills in.
func (w Writer) WriteAll(ctx context.Context, base string, in Input) (Paths, error) {
	paths := PathsFor(w.Dir, base)
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return paths, fmt.Errorf("create output dir: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writeFile(ctx, paths.Report, func(f io.Writer) error { return WriteText(f, in) })
	})
	g.Go(func() error {
		return writeFile(ctx, paths.CSV, func(f io.Writer) error { return WriteCSV(f, in.Features) })
	})
	g.Go(func() error {
		return writeFile(ctx, paths.Plots, func(f io.Writer) error { return WritePlots(f, in.SourceName, in.Features) })
	})
	if err := g.Wait(); err != nil {
		return paths, err
	}
	return paths, nil
}

func writeFile(ctx context.Context, path string, write func(io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	return nil
}
