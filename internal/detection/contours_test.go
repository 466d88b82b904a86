package detection

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createMask creates an all-background binary mask.
func createMask(width, height int) *image.Gray {
	return image.NewGray(image.Rect(0, 0, width, height))
}

// fillRect sets every pixel of r (Max exclusive) to foreground.
func fillRect(m *image.Gray, r image.Rectangle) {
	r = r.Intersect(m.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.Pix[m.PixOffset(x, y)] = 255
		}
	}
}

// strokeRect draws a rectangle outline of the given thickness inside r.
func strokeRect(m *image.Gray, r image.Rectangle, thickness int) {
	fillRect(m, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness))
	fillRect(m, image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y))
	fillRect(m, image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y))
	fillRect(m, image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y))
}

func TestLabelComponents(t *testing.T) {
	m := createMask(50, 50)
	fillRect(m, image.Rect(5, 5, 10, 10))
	fillRect(m, image.Rect(20, 20, 30, 25))
	// Diagonal neighbours join under 8-connectivity.
	m.Pix[m.PixOffset(10, 10)] = 255

	labels := LabelComponents(m)
	require.Len(t, labels.Components, 2)

	first := labels.Components[0]
	assert.Equal(t, 26, first.Area)
	assert.Equal(t, image.Pt(5, 5), first.Start)
	assert.Equal(t, image.Rect(5, 5, 11, 11), first.Bounds)
	assert.True(t, first.External)

	second := labels.Components[1]
	assert.Equal(t, 50, second.Area)
	assert.Equal(t, image.Pt(20, 20), second.Start)
}

func TestLabelComponents_NestedIsNotExternal(t *testing.T) {
	m := createMask(60, 60)
	strokeRect(m, image.Rect(5, 5, 55, 55), 2)
	fillRect(m, image.Rect(25, 25, 35, 35))

	labels := LabelComponents(m)
	require.Len(t, labels.Components, 2)
	assert.True(t, labels.Components[0].External, "outline should be external")
	assert.False(t, labels.Components[1].External, "blob inside the outline should not be external")
}

func TestLabelComponents_Empty(t *testing.T) {
	labels := LabelComponents(createMask(20, 20))
	assert.Empty(t, labels.Components)
}

func TestTraceBoundary_Square(t *testing.T) {
	m := createMask(5, 5)
	fillRect(m, image.Rect(1, 1, 4, 4))

	labels := LabelComponents(m)
	require.Len(t, labels.Components, 1)

	contour := labels.TraceBoundary(labels.Components[0])
	want := Contour{
		{1, 1}, {2, 1}, {3, 1},
		{3, 2}, {3, 3},
		{2, 3}, {1, 3},
		{1, 2},
	}
	assert.Equal(t, want, contour)
	assert.InDelta(t, 4.0, contour.Area(), 1e-9)
	assert.InDelta(t, 8.0, contour.Perimeter(), 1e-9)
}

func TestTraceBoundary_SinglePixel(t *testing.T) {
	m := createMask(5, 5)
	m.Pix[m.PixOffset(2, 2)] = 255

	labels := LabelComponents(m)
	contour := labels.TraceBoundary(labels.Components[0])
	assert.Equal(t, Contour{{2, 2}}, contour)
	assert.Zero(t, contour.Area())
	assert.Zero(t, contour.Perimeter())
}

func TestTraceBoundary_OffsetBounds(t *testing.T) {
	m := image.NewGray(image.Rect(100, 200, 110, 210))
	fillRect(m, image.Rect(102, 202, 105, 205))

	labels := LabelComponents(m)
	require.Len(t, labels.Components, 1)
	assert.Equal(t, image.Pt(102, 202), labels.Components[0].Start)

	contour := labels.TraceBoundary(labels.Components[0])
	require.NotEmpty(t, contour)
	assert.Equal(t, image.Pt(102, 202), contour[0])
	for _, p := range contour {
		assert.True(t, p.In(image.Rect(102, 202, 105, 205)), "point %v outside component", p)
	}
}

func TestExternalContours_SortedByArea(t *testing.T) {
	m := createMask(100, 100)
	fillRect(m, image.Rect(5, 5, 15, 15))
	fillRect(m, image.Rect(30, 30, 80, 80))
	fillRect(m, image.Rect(5, 60, 25, 80))

	contours := ExternalContours(m)
	require.Len(t, contours, 3)
	for i := 1; i < len(contours); i++ {
		assert.GreaterOrEqual(t, contours[i-1].Area(), contours[i].Area())
	}
	assert.InDelta(t, 49.0*49.0, contours[0].Area(), 1e-9)
}

func TestExternalContours_SkipsNested(t *testing.T) {
	m := createMask(60, 60)
	strokeRect(m, image.Rect(5, 5, 55, 55), 2)
	fillRect(m, image.Rect(25, 25, 35, 35))

	contours := ExternalContours(m)
	require.Len(t, contours, 1)
	assert.InDelta(t, 49.0*49.0, contours[0].Area(), 1e-9)
}

func TestPolygonArea(t *testing.T) {
	tests := []struct {
		name string
		pts  []image.Point
		want float64
	}{
		{"empty", nil, 0},
		{"line", []image.Point{{0, 0}, {5, 5}}, 0},
		{"triangle", []image.Point{{0, 0}, {4, 0}, {0, 3}}, 6},
		{"clockwise square", []image.Point{{0, 0}, {0, 10}, {10, 10}, {10, 0}}, 100},
		{"counter-clockwise square", []image.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, polygonArea(tt.pts), 1e-9)
		})
	}
}
