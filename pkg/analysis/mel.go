package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSP       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSP
)

var melLogStep = math.Log(6.4) / 27

func hzToMel(hz float64) float64 {
	if hz >= melMinLogHz {
		return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
	}
	return hz / melFSP
}

func melToHz(mel float64) float64 {
	if mel >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
	}
	return mel * melFSP
}

// MelFilterbank builds an nMels x bins matrix of triangular filters spanning 0 Hz to Nyquist
// with Slaney area normalization.
func MelFilterbank(sampleRate int, cfg STFTConfig, nMels int) *mat.Dense {
	bins := cfg.NumBins()
	fftFreqs := cfg.BinFrequencies(sampleRate)

	mels := make([]float64, nMels+2)
	floats.Span(mels, hzToMel(0), hzToMel(float64(sampleRate)/2))
	melF := make([]float64, len(mels))
	for i, m := range mels {
		melF[i] = melToHz(m)
	}

	weights := mat.NewDense(nMels, bins, nil)
	for i := range nMels {
		lowerWidth := melF[i+1] - melF[i]
		upperWidth := melF[i+2] - melF[i+1]
		enorm := 2 / (melF[i+2] - melF[i])
		for k, f := range fftFreqs {
			lower := (f - melF[i]) / lowerWidth
			upper := (melF[i+2] - f) / upperWidth
			w := math.Max(0, math.Min(lower, upper))
			if w > 0 {
				weights.Set(i, k, w*enorm)
			}
		}
	}
	return weights
}

// powerToDB converts a power matrix to decibels in place relative to ref, clipping
// everything below max-topDB.
func powerToDB(m *mat.Dense, ref, topDB float64) {
	const amin = 1e-10
	refDB := 10 * math.Log10(math.Max(amin, ref))
	peak := math.Inf(-1)
	m.Apply(func(_, _ int, v float64) float64 {
		db := 10*math.Log10(math.Max(amin, v)) - refDB
		peak = math.Max(peak, db)
		return db
	}, m)
	if topDB > 0 {
		floor := peak - topDB
		m.Apply(func(_, _ int, v float64) float64 {
			return math.Max(v, floor)
		}, m)
	}
}

// dctBasis returns the n x size orthonormal DCT-II matrix, truncated to the first n rows.
func dctBasis(n, size int) *mat.Dense {
	basis := mat.NewDense(n, size, nil)
	for k := range n {
		scale := math.Sqrt(2 / float64(size))
		if k == 0 {
			scale = math.Sqrt(1 / float64(size))
		}
		for j := range size {
			basis.Set(k, j, scale*math.Cos(math.Pi*float64(k)*(2*float64(j)+1)/(2*float64(size))))
		}
	}
	return basis
}

// PitchClasses names the chroma rows.
var PitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// chromaFilterbank maps every bin above 20 Hz to its nearest equal-tempered pitch class.
func chromaFilterbank(sampleRate int, cfg STFTConfig) *mat.Dense {
	freqs := cfg.BinFrequencies(sampleRate)
	fb := mat.NewDense(len(PitchClasses), len(freqs), nil)
	for k, f := range freqs {
		if f < 20 {
			continue
		}
		// MIDI note 69 is A4, note 60 is C4
		midi := 69 + 12*math.Log2(f/440)
		pc := int(math.Round(midi)) % 12
		if pc < 0 {
			pc += 12
		}
		fb.Set(pc, k, 1)
	}
	return fb
}
