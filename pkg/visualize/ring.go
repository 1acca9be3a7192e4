package visualize

import (
	"image"
	"image/color"
)

// Ring is a fixed-width scrolling strip. Each Push adds one rightmost column and
// drops the oldest once the strip is full.
type Ring struct {
	width  int
	height int
	cols   [][]color.RGBA
	next   int // slot the next push writes
	count  int
}

// NewRing returns an empty width x height strip.
func NewRing(width, height int) *Ring {
	cols := make([][]color.RGBA, width)
	for i := range cols {
		cols[i] = make([]color.RGBA, height)
	}
	return &Ring{width: width, height: height, cols: cols}
}

// Width returns the strip width in columns.
func (r *Ring) Width() int { return r.width }

// Height returns the strip height in pixels.
func (r *Ring) Height() int { return r.height }

// Len returns how many columns have been written, capped at Width.
func (r *Ring) Len() int { return r.count }

// Push copies col into the newest slot. Short columns are padded with the zero color.
func (r *Ring) Push(col []color.RGBA) {
	dst := r.cols[r.next]
	n := copy(dst, col)
	clear(dst[n:])
	r.next = (r.next + 1) % r.width
	r.count = min(r.count+1, r.width)
}

// Column returns the column drawn at screen x, oldest on the left, or nil when x
// has not been written yet.
func (r *Ring) Column(x int) []color.RGBA {
	if x < 0 || x >= r.width {
		return nil
	}
	empty := r.width - r.count
	if x < empty {
		return nil
	}
	// the oldest written column sits at screen x == empty
	slot := (r.next - r.count + (x - empty) + r.width) % r.width
	return r.cols[slot]
}

// Draw paints the strip into dst with its top-left corner at at. Unwritten
// columns are filled with bg.
func (r *Ring) Draw(dst *image.RGBA, at image.Point, bg color.RGBA) {
	for x := range r.width {
		col := r.Column(x)
		for y := range r.height {
			c := bg
			if col != nil {
				c = col[y]
			}
			if !image.Pt(at.X+x, at.Y+y).In(dst.Rect) {
				continue
			}
			i := dst.PixOffset(at.X+x, at.Y+y)
			p := dst.Pix[i : i+4 : i+4]
			p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
		}
	}
}
