package detector

import (
	"context"
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"

	"github.com/Gowithe/scangrade-thai/internal/detection"
	"github.com/Gowithe/scangrade-thai/internal/marks"
)

// Blob finds filled bubbles as solid dark blobs. It needs no model and is
// used when no model server is configured.
//
// Every 8-connected group of dark pixels whose bounding box is roughly
// square and within the size limits is a candidate. Its confidence is the
// share of the core disk (centred in the bounding box, CoreRatio of the
// inscribed radius) covered by ink. A shaded bubble scores near 1 whether
// or not its printed outline is part of the blob; a hollow printed circle
// leaves the core empty and scores near 0.
type Blob struct {
	// Darkness is the highest gray level counted as ink.
	Darkness uint8

	// MinSide and MaxSide bound the bounding box sides in pixels.
	MinSide int
	MaxSide int

	// MaxAspect bounds the ratio of the longer to the shorter side.
	MaxAspect float64

	// CoreRatio is the core disk radius as a fraction of the inscribed
	// circle's radius.
	CoreRatio float64
}

// NewBlob returns a Blob tuned for 1600×2300 canonical sheets.
func NewBlob() *Blob {
	return &Blob{
		Darkness:  110,
		MinSide:   14,
		MaxSide:   80,
		MaxAspect: 2,
		CoreRatio: 0.6,
	}
}

// Detect implements marks.Detector. It never fails.
func (b *Blob) Detect(_ context.Context, img image.Image, confThreshold float64) ([]marks.Detection, error) {
	ink := segment.Threshold(effect.Invert(effect.Grayscale(img)), 255-b.Darkness)
	labels := detection.LabelComponents(ink)
	origin := img.Bounds().Min

	var out []marks.Detection
	for _, c := range labels.Components {
		w, h := c.Bounds.Dx(), c.Bounds.Dy()
		if w < b.MinSide || h < b.MinSide || w > b.MaxSide || h > b.MaxSide {
			continue
		}
		long, short := max(w, h), min(w, h)
		if b.MaxAspect > 0 && float64(long) > b.MaxAspect*float64(short) {
			continue
		}

		fill := coreFill(ink, c.Bounds, b.CoreRatio)
		if fill <= 0 || fill < confThreshold {
			continue
		}

		r := c.Bounds.Sub(ink.Bounds().Min).Add(origin)
		out = append(out, marks.Detection{
			Box: marks.Box{
				X1: float64(r.Min.X),
				Y1: float64(r.Min.Y),
				X2: float64(r.Max.X),
				Y2: float64(r.Max.Y),
			},
			Confidence: fill,
		})
	}
	return out, nil
}

// coreFill returns the share of ink pixels inside the disk centred in r with
// radius ratio times the inscribed radius.
func coreFill(ink *image.Gray, r image.Rectangle, ratio float64) float64 {
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	cx := float64(r.Min.X+r.Max.X) / 2
	cy := float64(r.Min.Y+r.Max.Y) / 2
	radius := ratio * float64(min(r.Dx(), r.Dy())) / 2
	r2 := radius * radius

	var inked, total int
	for y := r.Min.Y; y < r.Max.Y; y++ {
		dy := float64(y) + 0.5 - cy
		for x := r.Min.X; x < r.Max.X; x++ {
			dx := float64(x) + 0.5 - cx
			if dx*dx+dy*dy > r2 {
				continue
			}
			total++
			if ink.GrayAt(x, y).Y != 0 {
				inked++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(inked) / float64(total)
}
