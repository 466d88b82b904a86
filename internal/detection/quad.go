package detection

import (
	"image"
	"math"
)

// DefaultAreaThresholds are the minimum quadrilateral areas, as fractions of
// the image area, tried in order until one yields a match.
var DefaultAreaThresholds = []float64{0.10, 0.05, 0.02}

// DefaultApproxEpsilon is the polygon simplification tolerance as a fraction
// of the contour perimeter.
const DefaultApproxEpsilon = 0.02

// QuadOptions controls FindQuadrilateral.
type QuadOptions struct {
	AreaThresholds []float64
	ApproxEpsilon  float64
}

// DefaultQuadOptions returns the thresholds used for answer-sheet detection.
func DefaultQuadOptions() QuadOptions {
	return QuadOptions{
		AreaThresholds: append([]float64(nil), DefaultAreaThresholds...),
		ApproxEpsilon:  DefaultApproxEpsilon,
	}
}

// FindQuadrilateral searches the external contours of a binary edge image for
// the largest convex four-cornered outline.
//
// Each area threshold is tried in turn. Within a threshold, contours are
// visited in descending area order and the first one whose simplified polygon
// has exactly four vertices, is convex and encloses at least threshold×image
// area wins. The corners are returned in contour order; callers are expected
// to order them.
//
// Returns false when no contour qualifies at any threshold.
func FindQuadrilateral(edges *image.Gray, opts QuadOptions) ([]image.Point, bool) {
	if len(opts.AreaThresholds) == 0 {
		opts.AreaThresholds = DefaultAreaThresholds
	}
	if opts.ApproxEpsilon <= 0 {
		opts.ApproxEpsilon = DefaultApproxEpsilon
	}

	bounds := edges.Bounds()
	imageArea := float64(bounds.Dx() * bounds.Dy())
	if imageArea == 0 {
		return nil, false
	}

	contours := ExternalContours(edges)
	candidates := make([][]image.Point, len(contours))
	for i, c := range contours {
		candidates[i] = ApproxPolygon(c, opts.ApproxEpsilon*c.Perimeter())
	}

	for _, ratio := range opts.AreaThresholds {
		minArea := ratio * imageArea
		for i, c := range contours {
			if c.Area() < minArea {
				break
			}
			poly := candidates[i]
			if len(poly) != 4 || !IsConvex(poly) {
				continue
			}
			if polygonArea(poly) < minArea {
				continue
			}
			return poly, true
		}
	}
	return nil, false
}

// ApproxPolygon simplifies a closed contour with the Douglas-Peucker algorithm.
// Vertices closer than epsilon to the simplified outline are dropped.
//
// The closed curve is split at two far-apart anchor points (the point farthest
// from the first vertex and the point farthest from that one), and each half
// is simplified as an open polyline.
func ApproxPolygon(contour Contour, epsilon float64) []image.Point {
	n := len(contour)
	if n < 3 {
		return append([]image.Point(nil), contour...)
	}

	a := farthestFrom(contour, contour[0])
	b := farthestFrom(contour, contour[a])
	if a == b {
		return []image.Point{contour[a]}
	}

	first := arc(contour, a, b)
	second := arc(contour, b, a)

	left := douglasPeucker(first, epsilon)
	right := douglasPeucker(second, epsilon)

	// Both halves share their endpoints; drop the duplicates.
	out := make([]image.Point, 0, len(left)+len(right))
	out = append(out, left[:len(left)-1]...)
	out = append(out, right[:len(right)-1]...)
	return out
}

// IsConvex reports whether the polygon turns consistently in one direction.
// Degenerate (collinear) vertices make a polygon non-convex.
func IsConvex(poly []image.Point) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	sign := 0
	for i := 0; i < n; i++ {
		p0 := poly[i]
		p1 := poly[(i+1)%n]
		p2 := poly[(i+2)%n]
		cross := (p1.X-p0.X)*(p2.Y-p1.Y) - (p1.Y-p0.Y)*(p2.X-p1.X)
		if cross == 0 {
			return false
		}
		s := 1
		if cross < 0 {
			s = -1
		}
		if sign == 0 {
			sign = s
		} else if s != sign {
			return false
		}
	}
	return true
}

func farthestFrom(pts []image.Point, p image.Point) int {
	best, bestDist := 0, -1.0
	for i, q := range pts {
		if d := dist(p, q); d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// arc returns the points from index i to j inclusive, wrapping around.
func arc(pts []image.Point, i, j int) []image.Point {
	n := len(pts)
	out := []image.Point{pts[i]}
	for k := (i + 1) % n; ; k = (k + 1) % n {
		out = append(out, pts[k])
		if k == j {
			break
		}
	}
	return out
}

func douglasPeucker(pts []image.Point, epsilon float64) []image.Point {
	if len(pts) < 3 {
		return append([]image.Point(nil), pts...)
	}
	start, end := pts[0], pts[len(pts)-1]
	idx, maxDist := 0, -1.0
	for i := 1; i < len(pts)-1; i++ {
		if d := segmentDistance(pts[i], start, end); d > maxDist {
			idx, maxDist = i, d
		}
	}
	if maxDist <= epsilon {
		return []image.Point{start, end}
	}
	left := douglasPeucker(pts[:idx+1], epsilon)
	right := douglasPeucker(pts[idx:], epsilon)
	return append(left[:len(left)-1], right...)
}

// segmentDistance is the distance from p to the line segment a-b.
func segmentDistance(p, a, b image.Point) float64 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return dist(p, a)
	}
	t := (float64(p.X-a.X)*dx + float64(p.Y-a.Y)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	px := float64(a.X) + t*dx
	py := float64(a.Y) + t*dy
	ex := float64(p.X) - px
	ey := float64(p.Y) - py
	return math.Sqrt(ex*ex + ey*ey)
}
