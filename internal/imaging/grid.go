package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultGridColor is drawn when no grid colour is given.
var DefaultGridColor = color.RGBA{255, 0, 0, 255}

// ParseHexColor parses "#RRGGBB" (the leading '#' is optional).
func ParseHexColor(hex string) (color.Color, error) {
	if hex == "" {
		return nil, fmt.Errorf("empty color string")
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return c.Clamped(), nil
}

// Grid draws a line every spacing pixels across the canvas. With labels set,
// each intersection is tagged with its "x,y" coordinate. Spacing below 1
// draws nothing.
func (a *Annotator) Grid(spacing int, labels bool, c color.Color) {
	if spacing < 1 {
		return
	}
	b := a.img.Bounds()

	for x := b.Min.X + spacing; x < b.Max.X; x += spacing {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			a.set(x, y, c)
		}
	}
	for y := b.Min.Y + spacing; y < b.Max.Y; y += spacing {
		for x := b.Min.X; x < b.Max.X; x++ {
			a.set(x, y, c)
		}
	}

	if !labels {
		return
	}
	for y := b.Min.Y + spacing; y < b.Max.Y; y += spacing {
		for x := b.Min.X + spacing; x < b.Max.X; x += spacing {
			a.Label(x+3, y+14, fmt.Sprintf("%d,%d", x-b.Min.X, y-b.Min.Y), LabelColor)
		}
	}
}

// GridOverlay returns a copy of img with a labelled coordinate grid drawn on
// it, for checking template slot positions against a rectified sheet.
func GridOverlay(img image.Image, spacing int, c color.Color) *image.NRGBA {
	if c == nil {
		c = DefaultGridColor
	}
	a := NewAnnotator(img)
	a.Grid(spacing, true, c)
	return a.Image()
}
