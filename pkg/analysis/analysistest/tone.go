// Package analysistest generates synthetic audio fixtures for tests.
package analysistest

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Tone returns seconds of a sine at freq Hz with amplitude 0.5.
func Tone(rate int, seconds, freq float64) []float64 {
	n := int(float64(rate) * seconds)
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

// WriteToneWAV writes a 16-bit PCM sine to path, duplicating it across channels.
func WriteToneWAV(path string, rate, channels int, seconds, freq float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	tone := Tone(rate, seconds, freq)
	data := make([]int, 0, len(tone)*channels)
	for _, s := range tone {
		v := int(math.Round(s * 32767))
		for range channels {
			data = append(data, v)
		}
	}

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}
