package marks

import (
	"context"
	"image"
)

// Multi is the decided answer for a question with two or more distinct
// options marked. It never collides with an option letter or a blank.
const Multi = "MULTI"

// Box is an axis-aligned bounding box in canonical image coordinates.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Center returns the midpoint of the box.
func (b Box) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Rect returns the box as an integer rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
}

// Detection is one candidate mark reported by a Detector.
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

// Detector finds candidate marks on a canonical image.
//
// Implementations return an unordered set of boxes with a confidence in
// [0, 1], dropping boxes below confThreshold. An empty result is a valid
// outcome, not an error. Implementations must be safe for concurrent use.
type Detector interface {
	Detect(ctx context.Context, img image.Image, confThreshold float64) ([]Detection, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, img image.Image, confThreshold float64) ([]Detection, error)

// Detect calls f.
func (f DetectorFunc) Detect(ctx context.Context, img image.Image, confThreshold float64) ([]Detection, error) {
	return f(ctx, img, confThreshold)
}

// AnswerSet holds the decided answer per question: an option letter or
// Multi. Blank questions have no entry.
type AnswerSet map[int]string

// Blank reports whether question q has no decided answer.
func (a AnswerSet) Blank(q int) bool {
	_, ok := a[q]
	return !ok
}

// Count returns how many of questions 1..questionCount are blank and how many
// are Multi.
func (a AnswerSet) Count(questionCount int) (blank, multi int) {
	for q := 1; q <= questionCount; q++ {
		switch ans, ok := a[q]; {
		case !ok:
			blank++
		case ans == Multi:
			multi++
		}
	}
	return blank, multi
}
