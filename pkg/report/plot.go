package report

import (
	"fmt"
	"image/color"
	"io"

	"github.com/nzoschke/soundscribe/pkg/analysis"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Plot canvas size and resolution.
const (
	plotWidth  = 16 * vg.Inch
	plotHeight = 12 * vg.Inch
	plotDPI    = 100
)

type panel struct {
	title  string
	ylabel string
	values []float64
	color  color.RGBA
}

// WritePlots renders RMS, novelty, centroid and ZCR as four stacked, time-aligned line plots
// and encodes them as PNG.
func WritePlots(w io.Writer, sourceName string, f *analysis.Features) error {
	if f == nil || f.NumFrames() == 0 {
		return fmt.Errorf("write plots: no features")
	}

	panels := []panel{
		{"RMS Energy (Loudness Profile)", "RMS (Normalized)", f.RMS, color.RGBA{R: 0x00, G: 0x00, B: 0x8b, A: 0xff}},
		{"Novelty Curve (Onset Strength Function)", "Novelty Value", f.Novelty, color.RGBA{R: 0x00, G: 0x64, B: 0x00, A: 0xff}},
		{"Spectral Centroid (Brightness)", "Frequency (Hz)", f.Centroid, color.RGBA{R: 0x8b, G: 0x00, B: 0x00, A: 0xff}},
		{"Zero-Crossing Rate (Noisiness/Percussiveness)", "ZCR", f.ZCR, color.RGBA{R: 0x80, G: 0x00, B: 0x80, A: 0xff}},
	}

	end := f.Times[len(f.Times)-1]
	plots := make([][]*plot.Plot, len(panels))
	for i, pn := range panels {
		p := plot.New()
		p.Title.Text = pn.title
		if i == 0 {
			p.Title.Text = fmt.Sprintf("Quantitative Analysis of - %s\n\n%s", sourceName, pn.title)
		}
		p.Y.Label.Text = pn.ylabel
		if i == len(panels)-1 {
			p.X.Label.Text = "Time (Seconds)"
		}
		p.X.Min, p.X.Max = 0, end
		p.Add(plotter.NewGrid())

		xys := make(plotter.XYs, len(f.Times))
		for j, t := range f.Times {
			xys[j].X = t
			xys[j].Y = pn.values[j]
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("write plots: %s: %w", pn.title, err)
		}
		line.LineStyle.Color = pn.color
		line.LineStyle.Width = vg.Points(1)
		p.Add(line)

		plots[i] = []*plot.Plot{p}
	}

	img := vgimg.NewWith(vgimg.UseWH(plotWidth, plotHeight), vgimg.UseDPI(plotDPI))
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      len(panels),
		Cols:      1,
		PadTop:    vg.Points(10),
		PadBottom: vg.Points(10),
		PadLeft:   vg.Points(10),
		PadRight:  vg.Points(20),
		PadY:      vg.Points(12),
	}
	canvases := plot.Align(plots, tiles, dc)
	for i := range plots {
		plots[i][0].Draw(canvases[i][0])
	}

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("write plots: encode png: %w", err)
	}
	return nil
}
