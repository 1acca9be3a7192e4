package analysis

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// STFTConfig describes parameters for STFT computation.
type STFTConfig struct {
	FFTSize int // FFT window size, also the analysis window length
	HopSize int // samples between frame starts
}

// NumFrames returns the centered frame count for n samples.
func (c STFTConfig) NumFrames(n int) int {
	if c.HopSize <= 0 {
		return 0
	}
	return 1 + n/c.HopSize
}

// NumBins returns the number of one-sided frequency bins.
func (c STFTConfig) NumBins() int {
	return c.FFTSize/2 + 1
}

// BinFrequencies returns the center frequency of each bin in Hz.
func (c STFTConfig) BinFrequencies(sampleRate int) []float64 {
	freqs := make([]float64, c.NumBins())
	for k := range freqs {
		freqs[k] = float64(k) * float64(sampleRate) / float64(c.FFTSize)
	}
	return freqs
}

// centerPad pads samples by half a window on each side. Zero padding unless edge is set,
// in which case the first and last samples are repeated.
func centerPad(samples []float64, fftSize int, edge bool) []float64 {
	pad := fftSize / 2
	out := make([]float64, len(samples)+2*pad)
	copy(out[pad:], samples)
	if edge && len(samples) > 0 {
		first, last := samples[0], samples[len(samples)-1]
		for i := 0; i < pad; i++ {
			out[i] = first
			out[len(out)-1-i] = last
		}
	}
	return out
}

// frames calls fn with each centered frame of samples. The slice passed to fn is reused.
func frames(samples []float64, cfg STFTConfig, edge bool, fn func(i int, frame []float64)) int {
	padded := centerPad(samples, cfg.FFTSize, edge)
	n := cfg.NumFrames(len(samples))
	frame := make([]float64, cfg.FFTSize)
	for i := range n {
		start := i * cfg.HopSize
		clear(frame)
		if start < len(padded) {
			copy(frame, padded[start:min(start+cfg.FFTSize, len(padded))])
		}
		fn(i, frame)
	}
	return n
}

// PowerSpectrogram computes the centered STFT power |X|^2 as a bins x frames matrix,
// together with the magnitude spectrogram of the same shape.
func PowerSpectrogram(samples []float64, cfg STFTConfig) (power, magnitude *mat.Dense) {
	window := hannWindow(cfg.FFTSize)
	fft := fourier.NewFFT(cfg.FFTSize)
	bins := cfg.NumBins()
	n := cfg.NumFrames(len(samples))

	power = mat.NewDense(bins, n, nil)
	magnitude = mat.NewDense(bins, n, nil)
	coeffs := make([]complex128, bins)
	windowed := make([]float64, cfg.FFTSize)

	frames(samples, cfg, false, func(i int, frame []float64) {
		for j := range frame {
			windowed[j] = frame[j] * window[j]
		}
		coeffs = fft.Coefficients(coeffs, windowed)
		for k := range bins {
			re, im := real(coeffs[k]), imag(coeffs[k])
			p := re*re + im*im
			power.Set(k, i, p)
			magnitude.Set(k, i, math.Sqrt(p))
		}
	})
	return power, magnitude
}

// hannWindow generates a periodic Hann window of given size.
func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(size))
	}
	return w
}
