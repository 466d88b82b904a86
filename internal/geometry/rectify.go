package geometry

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/Gowithe/scangrade-thai/internal/detection"
	"github.com/Gowithe/scangrade-thai/internal/imaging"
)

var (
	// ErrNotFound is returned when automatic rectification finds no sheet
	// outline at any area threshold.
	ErrNotFound = errors.New("no answer sheet outline found")

	// ErrInvalidPoints is returned when manual rectification is not given
	// exactly four usable corner points.
	ErrInvalidPoints = errors.New("manual rectification needs exactly 4 corner points")

	// ErrDegenerateImage is returned for images with zero width or height.
	ErrDegenerateImage = errors.New("image has zero width or height")
)

// Config holds the canonical sheet geometry and the automatic detection
// parameters.
type Config struct {
	// Width and Height are the canonical image size.
	Width  int
	Height int

	// Margins are trimmed after an automatic warp, before the final resize.
	Margins imaging.Margins

	// MaxDetectSide bounds the longer side of the working copy used for
	// outline detection.
	MaxDetectSide int

	Edge imaging.EdgeOptions
	Quad detection.QuadOptions
}

// DefaultConfig returns the geometry of the supported answer sheets.
func DefaultConfig() Config {
	return Config{
		Width:         1600,
		Height:        2300,
		Margins:       imaging.Margins{Bottom: 40},
		MaxDetectSide: 1000,
		Edge:          imaging.DefaultEdgeOptions,
		Quad:          detection.DefaultQuadOptions(),
	}
}

// Rectifier turns photographs of an answer sheet into canonical images.
// It holds no mutable state and is safe for concurrent use.
type Rectifier struct {
	cfg Config
}

// NewRectifier creates a Rectifier. Zero-valued fields of cfg take their
// defaults.
func NewRectifier(cfg Config) *Rectifier {
	def := DefaultConfig()
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.MaxDetectSide <= 0 {
		cfg.MaxDetectSide = def.MaxDetectSide
	}
	if cfg.Edge == (imaging.EdgeOptions{}) {
		cfg.Edge = def.Edge
	}
	if len(cfg.Quad.AreaThresholds) == 0 {
		cfg.Quad.AreaThresholds = def.Quad.AreaThresholds
	}
	if cfg.Quad.ApproxEpsilon <= 0 {
		cfg.Quad.ApproxEpsilon = def.Quad.ApproxEpsilon
	}
	return &Rectifier{cfg: cfg}
}

// Config returns the effective configuration.
func (r *Rectifier) Config() Config {
	return r.cfg
}

// Size returns the canonical image dimensions.
func (r *Rectifier) Size() (int, int) {
	return r.cfg.Width, r.cfg.Height
}

// DetectCorners finds the sheet outline in img and returns its ordered
// corners in img coordinates.
func (r *Rectifier) DetectCorners(img image.Image) ([4]Point, error) {
	if img == nil || img.Bounds().Empty() {
		return [4]Point{}, ErrDegenerateImage
	}

	small, scale := imaging.Downscale(img, r.cfg.MaxDetectSide)
	edges := imaging.EdgeMap(small, r.cfg.Edge)
	quad, ok := detection.FindQuadrilateral(edges, r.cfg.Quad)
	if !ok {
		return [4]Point{}, ErrNotFound
	}

	smallMin := small.Bounds().Min
	origin := img.Bounds().Min
	pts := make([]Point, len(quad))
	for i, p := range quad {
		pts[i] = Point{
			X: float64(p.X-smallMin.X)/scale + float64(origin.X),
			Y: float64(p.Y-smallMin.Y)/scale + float64(origin.Y),
		}
	}
	return OrderPoints(pts)
}

// RectifyAutomatic locates the sheet outline and warps the original image
// onto the canonical rectangle, then trims the configured margins and
// resizes back to the exact canonical size.
//
// Returns ErrNotFound when no outline qualifies; a best-effort guess is never
// made.
func (r *Rectifier) RectifyAutomatic(img image.Image) (image.Image, error) {
	corners, err := r.DetectCorners(img)
	if err != nil {
		return nil, err
	}

	warped, err := WarpPerspective(img, corners, r.cfg.Width, r.cfg.Height)
	if err != nil {
		if errors.Is(err, ErrSingular) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, err
	}

	cropped := imaging.CropMargins(warped, r.cfg.Margins)
	return imaging.ResizeExact(cropped, r.cfg.Width, r.cfg.Height), nil
}

// RectifyManual warps img onto the canonical rectangle using four
// user-selected corners given in any order. No margins are trimmed.
func (r *Rectifier) RectifyManual(img image.Image, points []Point) (image.Image, error) {
	if len(points) != 4 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPoints, len(points))
	}
	if img == nil || img.Bounds().Empty() {
		return nil, ErrDegenerateImage
	}

	corners, err := OrderPoints(points)
	if err != nil {
		return nil, err
	}
	if quadArea(corners) < 1 {
		return nil, fmt.Errorf("%w: corners enclose no area", ErrInvalidPoints)
	}

	warped, err := WarpPerspective(img, corners, r.cfg.Width, r.cfg.Height)
	if err != nil {
		if errors.Is(err, ErrSingular) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPoints, err)
		}
		return nil, err
	}
	return warped, nil
}

func quadArea(q [4]Point) float64 {
	var sum float64
	for i := range 4 {
		j := (i + 1) % 4
		sum += q[i].X*q[j].Y - q[j].X*q[i].Y
	}
	return math.Abs(sum) / 2
}
