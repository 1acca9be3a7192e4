package analysis

import (
	"encoding/json"
	"fmt"
	"os"
)

// Waveform contains downsampled waveform data for visualization.
type Waveform struct {
	PixelsPerSec int       `json:"pixels_per_sec"`
	Peaks        []float64 `json:"peaks"`
	Troughs      []float64 `json:"troughs"`
}

// GenerateWaveform creates a peak/trough envelope of a.
// pixelsPerSec controls the resolution (e.g., 100 = 100 data points per second).
func GenerateWaveform(a *Audio, pixelsPerSec int) (*Waveform, error) {
	if pixelsPerSec <= 0 {
		return nil, fmt.Errorf("pixels per second must be positive")
	}

	samplesPerPixel := max(a.SampleRate/pixelsPerSec, 1)
	numPixels := len(a.Samples) / samplesPerPixel
	if numPixels == 0 {
		return nil, fmt.Errorf("audio too short")
	}

	w := &Waveform{
		PixelsPerSec: pixelsPerSec,
		Peaks:        make([]float64, numPixels),
		Troughs:      make([]float64, numPixels),
	}
	for i := range numPixels {
		chunk := a.Samples[i*samplesPerPixel : (i+1)*samplesPerPixel]
		hi, lo := -1.0, 1.0
		for _, s := range chunk {
			hi = max(hi, s)
			lo = min(lo, s)
		}
		w.Peaks[i] = hi
		w.Troughs[i] = lo
	}
	return w, nil
}

// WriteJSON writes the waveform to a JSON sidecar.
func (w *Waveform) WriteJSON(path string) error {
	data, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
