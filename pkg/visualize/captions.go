package visualize

import (
	"slices"

	"github.com/nzoschke/soundscribe/pkg/commentary"
)

// Captions tracks the active commentary line as playback advances.
type Captions struct {
	items   []commentary.Item
	last    float64
	current string
}

// NewCaptions copies and sorts items by time.
func NewCaptions(items []commentary.Item) *Captions {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b commentary.Item) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})
	return &Captions{items: sorted, last: -1}
}

// At returns the caption for playback time t. The latest item with
// last < time <= t becomes active and stays until a later one qualifies.
func (c *Captions) At(t float64) string {
	for i := len(c.items) - 1; i >= 0; i-- {
		it := c.items[i]
		if it.Time <= c.last {
			break
		}
		if it.Time <= t {
			c.current = it.Commentary
			c.last = it.Time
			break
		}
	}
	return c.current
}
