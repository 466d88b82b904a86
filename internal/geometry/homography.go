package geometry

import (
	"errors"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/parallel"

	"github.com/Gowithe/scangrade-thai/internal/imaging"
)

// ErrSingular is returned when four point pairs do not define a perspective
// transform (for example when three of them are collinear).
var ErrSingular = errors.New("points do not define a perspective transform")

// Homography is a 3x3 projective transform in row-major order with the last
// element fixed to 1.
type Homography [9]float64

// Apply maps (x, y) through the transform.
func (h Homography) Apply(x, y float64) (float64, float64) {
	denom := h[6]*x + h[7]*y + h[8]
	if denom == 0 {
		return math.Inf(-1), math.Inf(-1)
	}
	return (h[0]*x + h[1]*y + h[2]) / denom,
		(h[3]*x + h[4]*y + h[5]) / denom
}

// ComputeHomography solves for the transform mapping from[i] onto to[i].
func ComputeHomography(from, to [4]Point) (Homography, error) {
	// A*h = b for the eight unknowns h00..h21, with h22 = 1.
	var a [8][8]float64
	var b [8]float64
	for i := range 4 {
		X, Y := from[i].X, from[i].Y
		x, y := to[i].X, to[i].Y
		r := 2 * i

		a[r] = [8]float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x}
		b[r] = x
		a[r+1] = [8]float64{0, 0, 0, X, Y, 1, -X * y, -Y * y}
		b[r+1] = y
	}

	h, ok := solve8x8(a, b)
	if !ok {
		return Homography{}, ErrSingular
	}
	return Homography{h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], 1}, nil
}

// solve8x8 runs Gauss-Jordan elimination with partial pivoting.
func solve8x8(m [8][8]float64, v [8]float64) ([8]float64, bool) {
	var scale float64
	for r := range 8 {
		for c := range 8 {
			scale = math.Max(scale, math.Abs(m[r][c]))
		}
	}
	eps := 1e-10 * math.Max(scale, 1)

	for col := range 8 {
		pivot := col
		for r := col + 1; r < 8; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < eps {
			return [8]float64{}, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		v[col], v[pivot] = v[pivot], v[col]

		div := m[col][col]
		for c := col; c < 8; c++ {
			m[col][c] /= div
		}
		v[col] /= div

		for r := range 8 {
			if r == col || m[r][col] == 0 {
				continue
			}
			f := m[r][col]
			for c := col; c < 8; c++ {
				m[r][c] -= f * m[col][c]
			}
			v[r] -= f * v[col]
		}
	}
	return v, true
}

// WarpPerspective maps the quadrilateral quad of src (top-left, top-right,
// bottom-right, bottom-left, in src coordinates) onto a width×height
// rectangle.
//
// Every destination pixel is inverse-mapped into src and sampled
// bilinearly. Pixels that fall outside src are black. Rows are processed in
// parallel.
func WarpPerspective(src image.Image, quad [4]Point, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 || src.Bounds().Empty() {
		return nil, ErrDegenerateImage
	}

	dst := [4]Point{
		{X: 0, Y: 0},
		{X: float64(width - 1), Y: 0},
		{X: float64(width - 1), Y: float64(height - 1)},
		{X: 0, Y: float64(height - 1)},
	}
	origin := src.Bounds().Min
	local := quad
	for i := range local {
		local[i].X -= float64(origin.X)
		local[i].Y -= float64(origin.Y)
	}
	h, err := ComputeHomography(dst, local)
	if err != nil {
		return nil, err
	}

	in := imaging.ToNRGBA(src)
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				sx, sy := h.Apply(float64(x), float64(y))
				c := bilinear(in, sx, sy)
				i := out.PixOffset(x, y)
				out.Pix[i+0] = c.R
				out.Pix[i+1] = c.G
				out.Pix[i+2] = c.B
				out.Pix[i+3] = c.A
			}
		}
	})
	return out, nil
}

// bilinear samples src at a sub-pixel position. Positions more than half a
// pixel outside the image are black; the rest are clamped to the border.
func bilinear(src *image.NRGBA, x, y float64) color.NRGBA {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if math.IsNaN(x) || math.IsNaN(y) || x < -0.5 || y < -0.5 || x > float64(w)-0.5 || y > float64(h)-0.5 {
		return color.NRGBA{0, 0, 0, 255}
	}
	x = math.Min(math.Max(x, 0), float64(w-1))
	y = math.Min(math.Max(y, 0), float64(h-1))

	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx, fy := x-float64(x0), y-float64(y0)

	p00 := src.PixOffset(x0, y0)
	p10 := src.PixOffset(x1, y0)
	p01 := src.PixOffset(x0, y1)
	p11 := src.PixOffset(x1, y1)

	var px [4]uint8
	for c := range 4 {
		top := lerp(float64(src.Pix[p00+c]), float64(src.Pix[p10+c]), fx)
		bottom := lerp(float64(src.Pix[p01+c]), float64(src.Pix[p11+c]), fx)
		px[c] = uint8(lerp(top, bottom, fy) + 0.5)
	}
	return color.NRGBA{R: px[0], G: px[1], B: px[2], A: px[3]}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
