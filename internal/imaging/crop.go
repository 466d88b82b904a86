package imaging

import (
	"image"

	"github.com/disintegration/imaging"
)

// Margins are pixel counts trimmed from each side of an image.
type Margins struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// Downscale shrinks img so that its longer side is at most maxSide pixels and
// returns the resized image together with the applied scale factor.
//
// Images that already fit are returned unchanged with a scale of 1. The
// scale is never greater than 1, so dividing coordinates found on the
// returned image by it maps them back onto img.
func Downscale(img image.Image, maxSide int) (image.Image, float64) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longer := max(w, h)
	if maxSide <= 0 || longer <= maxSide {
		return img, 1.0
	}

	scale := float64(maxSide) / float64(longer)
	newW := max(1, int(float64(w)*scale))
	newH := max(1, int(float64(h)*scale))
	return imaging.Resize(img, newW, newH, imaging.Linear), scale
}

// CropMargins trims m from the edges of img. Margins that would consume the
// whole image are ignored and the image is returned as is.
func CropMargins(img image.Image, m Margins) image.Image {
	if m == (Margins{}) {
		return img
	}
	bounds := img.Bounds()
	if m.Left+m.Right >= bounds.Dx() || m.Top+m.Bottom >= bounds.Dy() {
		return img
	}
	rect := image.Rect(
		bounds.Min.X+m.Left,
		bounds.Min.Y+m.Top,
		bounds.Max.X-m.Right,
		bounds.Max.Y-m.Bottom,
	)
	return imaging.Crop(img, rect)
}

// ResizeExact scales img to exactly width×height, ignoring aspect ratio.
func ResizeExact(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return img
	}
	return imaging.Resize(img, width, height, imaging.Linear)
}

// ToNRGBA returns img as a zero-origin *image.NRGBA, copying only when img is
// not already in that form.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}
