package analysis

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPowerSpectrogram_Shape(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	samples := make([]float64, DefaultSampleRate)
	for i := range samples {
		samples[i] = rng.Float64()*2 - 1
	}

	cfg := STFTConfig{FFTSize: 2048, HopSize: 512}
	power, magnitude := PowerSpectrogram(samples, cfg)

	bins, frames := power.Dims()
	// centered framing: 1 + 22050/512 = 44
	assert.Equal(t, 1+len(samples)/cfg.HopSize, frames)
	assert.Equal(t, cfg.FFTSize/2+1, bins)

	mb, mf := magnitude.Dims()
	assert.Equal(t, bins, mb)
	assert.Equal(t, frames, mf)

	t.Logf("STFT result: %d frames x %d bins", frames, bins)
}

func TestPowerSpectrogram_SinePeak(t *testing.T) {
	const freq = 1000.0
	samples := make([]float64, DefaultSampleRate)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / DefaultSampleRate)
	}

	cfg := STFTConfig{FFTSize: 2048, HopSize: 512}
	power, _ := PowerSpectrogram(samples, cfg)
	bins, frames := power.Dims()
	require.Greater(t, frames, 10)

	mid := frames / 2
	best := 0
	for k := range bins {
		if power.At(k, mid) > power.At(best, mid) {
			best = k
		}
	}

	binHz := float64(DefaultSampleRate) / float64(cfg.FFTSize)
	assert.InDelta(t, freq, float64(best)*binHz, binHz)
}

func TestHannWindow_Periodic(t *testing.T) {
	w := hannWindow(8)
	assert.InDelta(t, 0, w[0], 1e-12)
	assert.InDelta(t, 1, w[4], 1e-12)
	// periodic window: w[1] == w[7]
	assert.InDelta(t, w[1], w[7], 1e-12)
}

func TestCenterPad(t *testing.T) {
	in := []float64{1, 2, 3}

	zero := centerPad(in, 4, false)
	assert.Equal(t, []float64{0, 0, 1, 2, 3, 0, 0}, zero)

	edge := centerPad(in, 4, true)
	assert.Equal(t, []float64{1, 1, 1, 2, 3, 3, 3}, edge)
}

func TestMelFilterbank(t *testing.T) {
	cfg := STFTConfig{FFTSize: 2048, HopSize: 512}
	fb := MelFilterbank(DefaultSampleRate, cfg, 128)

	r, c := fb.Dims()
	assert.Equal(t, 128, r)
	assert.Equal(t, cfg.NumBins(), c)

	// every filter covers at least one bin with a positive weight
	for i := range r {
		var sum float64
		for k := range c {
			v := fb.At(i, k)
			require.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.Greater(t, sum, 0.0, "filter %d is empty", i)
	}
}

func TestHzMelRoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 200, 999, 1000, 4000, 11025} {
		assert.InDelta(t, hz, melToHz(hzToMel(hz)), 1e-6)
	}
}

func TestDCTBasis_Orthonormal(t *testing.T) {
	basis := dctBasis(8, 8)
	for a := range 8 {
		for b := range 8 {
			var dot float64
			for j := range 8 {
				dot += basis.At(a, j) * basis.At(b, j)
			}
			want := 0.0
			if a == b {
				want = 1
			}
			assert.InDelta(t, want, dot, 1e-9)
		}
	}
}
