package analysis

// FindPeaks returns the indices of local maxima in x whose value is at least height
// and whose topographic prominence is at least prominence. Flat-topped peaks are
// reported at the middle of the plateau, rounding down.
func FindPeaks(x []float64, height, prominence float64) []int {
	var peaks []int
	for _, p := range localMaxima(x) {
		if x[p] < height {
			continue
		}
		if peakProminence(x, p) < prominence {
			continue
		}
		peaks = append(peaks, p)
	}
	return peaks
}

// localMaxima finds samples strictly higher than both neighbours, treating plateaus as one peak.
func localMaxima(x []float64) []int {
	var peaks []int
	i := 1
	last := len(x) - 1
	for i < last {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < last && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				left, right := i, ahead-1
				peaks = append(peaks, (left+right)/2)
				i = ahead
				continue
			}
		}
		i++
	}
	return peaks
}

// peakProminence measures how far peak p rises above the higher of its two bases.
// Each base is the minimum reached before the signal climbs above x[p] or ends.
func peakProminence(x []float64, p int) float64 {
	leftMin := x[p]
	for i := p; i >= 0 && x[i] <= x[p]; i-- {
		if x[i] < leftMin {
			leftMin = x[i]
		}
	}

	rightMin := x[p]
	for i := p; i < len(x) && x[i] <= x[p]; i++ {
		if x[i] < rightMin {
			rightMin = x[i]
		}
	}

	return x[p] - max(leftMin, rightMin)
}
