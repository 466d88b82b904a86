package geometry

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
)

// Point is a sub-pixel image coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt converts an integer pixel position to a Point.
func Pt(p image.Point) Point {
	return Point{X: float64(p.X), Y: float64(p.Y)}
}

// Corner indexes the result of OrderPoints.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// OrderPoints arranges four corner points as top-left, top-right,
// bottom-right, bottom-left.
//
// Top-left has the smallest x+y and bottom-right the largest. Top-right has
// the smallest y-x and bottom-left the largest. The result does not depend on
// the order of pts. Ties go to the earliest point.
func OrderPoints(pts []Point) ([4]Point, error) {
	var out [4]Point
	if len(pts) != 4 {
		return out, fmt.Errorf("%w: got %d points, need 4", ErrInvalidPoints, len(pts))
	}

	sum := func(p Point) float64 { return p.X + p.Y }
	diff := func(p Point) float64 { return p.Y - p.X }

	out[TopLeft] = pts[argBest(pts, sum, false)]
	out[BottomRight] = pts[argBest(pts, sum, true)]
	out[TopRight] = pts[argBest(pts, diff, false)]
	out[BottomLeft] = pts[argBest(pts, diff, true)]
	return out, nil
}

func argBest(pts []Point, key func(Point) float64, largest bool) int {
	best := 0
	for i := 1; i < len(pts); i++ {
		v, b := key(pts[i]), key(pts[best])
		if (largest && v > b) || (!largest && v < b) {
			best = i
		}
	}
	return best
}

// ParsePoints reads points written as "x,y;x,y;...". Whitespace around
// numbers is ignored.
func ParsePoints(s string) ([]Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: no points given", ErrInvalidPoints)
	}

	parts := strings.Split(strings.TrimSuffix(s, ";"), ";")
	pts := make([]Point, 0, len(parts))
	for _, part := range parts {
		xs, ys, ok := strings.Cut(part, ",")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not x,y", ErrInvalidPoints, part)
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if errX != nil || errY != nil || !finite(x) || !finite(y) {
			return nil, fmt.Errorf("%w: %q is not x,y", ErrInvalidPoints, part)
		}
		pts = append(pts, Point{X: x, Y: y})
	}
	return pts, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
