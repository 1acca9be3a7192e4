package visualize

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Font sizes in points at 72 DPI, so one point is one pixel.
const (
	labelFontSize   = 13
	captionFontSize = 18
)

// fonts holds the faces used for labels and captions.
type fonts struct {
	label   font.Face
	caption font.Face
}

func loadFonts() (*fonts, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	label, err := opentype.NewFace(f, &opentype.FaceOptions{Size: labelFontSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("label face: %w", err)
	}
	caption, err := opentype.NewFace(f, &opentype.FaceOptions{Size: captionFontSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("caption face: %w", err)
	}
	return &fonts{label: label, caption: caption}, nil
}

// textWidth returns the advance of s in pixels.
func textWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// textHeight returns the line height of face in pixels.
func textHeight(face font.Face) int {
	return face.Metrics().Height.Ceil()
}

// drawText draws s with its top-left corner at (x, y).
func drawText(dst *image.RGBA, face font.Face, x, y int, s string, c color.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}

// wrapText greedily breaks s into lines no wider than maxWidth. A single word
// wider than maxWidth gets a line of its own.
func wrapText(s string, face font.Face, maxWidth int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	line := ""
	for _, w := range words {
		candidate := w
		if line != "" {
			candidate = line + " " + w
		}
		if line == "" || textWidth(face, candidate) <= maxWidth {
			line = candidate
			continue
		}
		lines = append(lines, line)
		line = w
	}
	return append(lines, line)
}
