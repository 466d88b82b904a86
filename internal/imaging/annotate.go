package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Overlay colours used on review images.
var (
	SlotColor  = color.RGBA{0, 100, 255, 255}
	LabelColor = color.RGBA{255, 255, 0, 255}
	labelBg    = color.RGBA{0, 0, 0, 160}

	lowConfidence  = colorful.Color{R: 0.9, G: 0.1, B: 0.1}
	highConfidence = colorful.Color{R: 0.1, G: 0.8, B: 0.2}
)

// Annotator draws review marks on a private copy of an image. The source image
// is never modified.
type Annotator struct {
	img *image.NRGBA
}

// NewAnnotator copies base into a new drawable canvas.
func NewAnnotator(base image.Image) *Annotator {
	return &Annotator{img: imaging.Clone(base)}
}

// Image returns the annotated canvas.
func (a *Annotator) Image() *image.NRGBA {
	return a.img
}

// Dot draws a filled circle centred at (cx, cy).
func (a *Annotator) Dot(cx, cy float64, radius int, c color.Color) {
	x0, y0 := int(cx), int(cy)
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > r2 {
				continue
			}
			a.set(x0+dx, y0+dy, c)
		}
	}
}

// Rect outlines r with a line of the given thickness.
func (a *Annotator) Rect(r image.Rectangle, thickness int, c color.Color) {
	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			a.set(x, r.Min.Y+t, c)
			a.set(x, r.Max.Y-1-t, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			a.set(r.Min.X+t, y, c)
			a.set(r.Max.X-1-t, y, c)
		}
	}
}

// Label writes text with its baseline starting at (x, y) over a translucent
// backdrop.
func (a *Annotator) Label(x, y int, text string, fg color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  a.img,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	width := d.MeasureString(text).Ceil()
	metrics := face.Metrics()
	bg := image.Rect(x-2, y-metrics.Ascent.Ceil()-1, x+width+2, y+metrics.Descent.Ceil()+1)
	draw.Draw(a.img, bg.Intersect(a.img.Bounds()), image.NewUniform(labelBg), image.Point{}, draw.Over)
	d.DrawString(text)
}

func (a *Annotator) set(x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}).In(a.img.Bounds()) {
		return
	}
	a.img.Set(x, y, c)
}

// ConfidenceColor maps a detector confidence in [0,1] onto a red-to-green
// gradient blended in HCL space.
func ConfidenceColor(confidence float64) color.Color {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return lowConfidence.BlendHcl(highConfidence, confidence).Clamped()
}
