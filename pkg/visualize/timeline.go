package visualize

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
)

// tickEvery is the ruler spacing in whole seconds.
const tickEvery = 5

type mark struct {
	frame int // frame the mark was added on
	label string
}

// Timeline is a scrolling ruler. Marks are stored by the frame they appeared on
// and redrawn shifted one pixel left per elapsed frame.
type Timeline struct {
	width      int
	height     int
	frame      int
	lastSecond int
	marks      []mark
}

// NewTimeline returns an empty ruler.
func NewTimeline(width, height int) *Timeline {
	return &Timeline{width: width, height: height, lastSecond: -1}
}

// Advance scrolls one column and adds a tick when playback enters a new second
// divisible by five.
func (tl *Timeline) Advance(t float64) {
	tl.frame++
	sec := int(t)
	if sec > tl.lastSecond && sec%tickEvery == 0 {
		tl.marks = append(tl.marks, mark{frame: tl.frame, label: clockLabel(sec)})
	}
	tl.lastSecond = sec
}

// Marks returns the labels currently tracked, oldest first.
func (tl *Timeline) Marks() []string {
	out := make([]string, len(tl.marks))
	for i, m := range tl.marks {
		out[i] = m.label
	}
	return out
}

// Draw paints ticks and labels into dst with the ruler's top-left at at.
func (tl *Timeline) Draw(dst *image.RGBA, at image.Point, face font.Face, tick, label color.RGBA) {
	mid := tl.height / 2
	kept := tl.marks[:0]
	for _, m := range tl.marks {
		shift := tl.frame - m.frame
		lw := textWidth(face, m.label)
		x := tl.width - 1 - shift
		lx := tl.width - lw - 5 - shift
		if x < 0 && lx+lw < 0 {
			continue
		}
		kept = append(kept, m)

		if x >= 0 {
			for y := mid - 5; y <= mid+5; y++ {
				px := at.Add(image.Pt(x, y))
				if px.In(dst.Rect) && y >= 0 && y < tl.height {
					dst.SetRGBA(px.X, px.Y, tick)
				}
			}
		}
		ly := mid - textHeight(face)/2 + 1
		drawText(dst, face, at.X+lx, at.Y+ly, m.label, label)
	}
	tl.marks = kept
}

func clockLabel(sec int) string {
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}
