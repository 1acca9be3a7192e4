package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/nzoschke/soundscribe/pkg/analysis"
)

// CSVHeader returns the feature table columns for nMFCC coefficients.
func CSVHeader(nMFCC int) []string {
	header := []string{"Time_Seconds", "RMS_Energy", "Spectral_Centroid", "ZCR", "Novelty_Curve"}
	for i := 1; i <= nMFCC; i++ {
		header = append(header, fmt.Sprintf("MFCC_%d", i))
	}
	return header
}

// WriteCSV writes one row per frame.
func WriteCSV(w io.Writer, f *analysis.Features) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader(len(f.MFCC))); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, 5+len(f.MFCC))
	for i := range f.NumFrames() {
		row[0] = formatFloat(f.Times[i])
		row[1] = formatFloat(f.RMS[i])
		row[2] = formatFloat(f.Centroid[i])
		row[3] = formatFloat(f.ZCR[i])
		row[4] = formatFloat(f.Novelty[i])
		for c, coeffs := range f.MFCC {
			row[5+c] = formatFloat(coeffs[i])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
