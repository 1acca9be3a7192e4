package visualize

import (
	"image/color"
	"math"
)

// Level meter geometry and thresholds.
const (
	meterBars       = 20
	meterGreenUntil = 0.5
	meterYellowUpTo = 0.8
)

var (
	meterGreen  = color.RGBA{G: 0xff, A: 0xff}
	meterYellow = color.RGBA{R: 0xff, G: 0xff, A: 0xff}
	meterRed    = color.RGBA{R: 0xff, A: 0xff}
)

// spectrogramColumn maps mel dB values (floored at -80) to gray, lowest band at the bottom.
func spectrogramColumn(db []float64, height int, bg color.RGBA) []color.RGBA {
	col := make([]color.RGBA, height)
	n := len(db)
	if n == 0 {
		fillColumn(col, bg)
		return col
	}
	for y := range col {
		band := n - 1 - y*n/height
		g := clampByte((db[band] + 80) / 80 * 255)
		col[y] = color.RGBA{R: g, G: g, B: g, A: 0xff}
	}
	return col
}

// meterColumn lights int(level*20) bars from the bottom. level is in [0, 1].
func meterColumn(level float64, height int, bg color.RGBA) []color.RGBA {
	col := make([]color.RGBA, height)
	fillColumn(col, bg)

	lit := int(level * meterBars)
	barHeight := float64(height) / meterBars
	for y := range col {
		bar := int(float64(height-1-y) / barHeight)
		if bar >= lit {
			continue
		}
		switch {
		case bar < meterBars*meterGreenUntil:
			col[y] = meterGreen
		case bar < meterBars*meterYellowUpTo:
			col[y] = meterYellow
		default:
			col[y] = meterRed
		}
	}
	return col
}

// chromaColumn draws one magenta band per pitch class, C at the top.
func chromaColumn(chroma []float64, height int, bg color.RGBA) []color.RGBA {
	col := make([]color.RGBA, height)
	n := len(chroma)
	if n == 0 {
		fillColumn(col, bg)
		return col
	}
	for y := range col {
		v := clampByte(chroma[y*n/height] * 255)
		col[y] = color.RGBA{R: v, B: v, A: 0xff}
	}
	return col
}

func fillColumn(col []color.RGBA, c color.RGBA) {
	for i := range col {
		col[i] = c
	}
}

func clampByte(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}
