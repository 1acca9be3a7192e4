// Package report writes the text report, the CSV feature table and the feature plots.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/nzoschke/soundscribe/pkg/analysis"
)

// Peak picking on the novelty curve: height is mean + PeakStdFactor*std.
const (
	PeakStdFactor  = 1.0
	PeakProminence = 0.1
)

// NoPeaksMessage is written when no novelty peak qualifies.
const NoPeaksMessage = "  No significant peaks found above the current threshold, indicating a continuously evolving or highly homogeneous texture."

// Input is everything the text report needs.
type Input struct {
	SourceName string
	Features   *analysis.Features
	Narrative  string
	AnalyzedAt time.Time
}

// Stat is the global mean and sample standard deviation of one feature.
type Stat struct {
	Name string
	Mean float64
	Std  float64
}

// GlobalStats summarizes the four scalar series in report order.
func GlobalStats(f *analysis.Features) []Stat {
	series := []struct {
		name   string
		values []float64
	}{
		{"RMS_Energy", f.RMS},
		{"Spectral_Centroid", f.Centroid},
		{"ZCR", f.ZCR},
		{"Novelty_Curve", f.Novelty},
	}
	stats := make([]Stat, len(series))
	for i, s := range series {
		stats[i] = Stat{Name: s.name, Mean: analysis.Mean(s.values), Std: analysis.StdDev(s.values)}
	}
	return stats
}

// NoveltyPeaks returns the times of novelty peaks above mean+std with prominence 0.1.
func NoveltyPeaks(f *analysis.Features) []float64 {
	height := analysis.Mean(f.Novelty) + analysis.PopStdDev(f.Novelty)*PeakStdFactor
	idx := analysis.FindPeaks(f.Novelty, height, PeakProminence)
	times := make([]float64, len(idx))
	for i, p := range idx {
		times[i] = f.Times[p]
	}
	return times
}

// WriteText renders the analysis report.
func WriteText(w io.Writer, in Input) error {
	f := in.Features
	if f == nil || f.NumFrames() == 0 {
		return fmt.Errorf("write report: no features")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Quantitative Musicological Analysis Report\n")
	fmt.Fprintf(&b, "Piece: %s\n", in.SourceName)
	fmt.Fprintf(&b, "Duration: %.2f seconds\n", f.Times[len(f.Times)-1])
	fmt.Fprintf(&b, "Date of Analysis: %s\n\n", in.AnalyzedAt.Format(time.DateTime))

	b.WriteString("--- Global Feature Analysis (AI Interpreted) ---\n")
	b.WriteString("This report is based on an analysis of audio features including RMS (loudness), Spectral Centroid (brightness), ")
	b.WriteString("ZCR (noisiness), and MFCCs (timbral qualities).\n\n")
	b.WriteString(in.Narrative)
	b.WriteString("\n\n")

	b.WriteString("--- Global Statistics ---\n")
	b.WriteString(statsTable(GlobalStats(f)))
	b.WriteString("\n\n")

	b.WriteString("--- Indications of Formal Boundaries ---\n")
	b.WriteString("### Potential Major Onsets/Changes (Novelty Curve Peaks)\n")
	peaks := NoveltyPeaks(f)
	if len(peaks) == 0 {
		b.WriteString(NoPeaksMessage + "\n")
	} else {
		b.WriteString("  Moments of significant spectral change or 'newness' are indicated at:\n")
		for _, t := range peaks {
			fmt.Fprintf(&b, "  - %.2f seconds\n", t)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func statsTable(stats []Stat) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleDefault)
	tw.Style().Format.Header = text.FormatDefault
	tw.AppendHeader(table.Row{"Feature", "Mean", "Standard Deviation"})
	for _, s := range stats {
		tw.AppendRow(table.Row{s.Name, formatStat(s.Mean), formatStat(s.Std)})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func formatStat(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}
