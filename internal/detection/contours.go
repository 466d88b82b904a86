package detection

import (
	"image"
	"math"
	"sort"
)

// Component is an 8-connected group of foreground pixels in a binary image.
type Component struct {
	// Label is the component's 1-based label in the label grid.
	Label int

	// Area is the number of pixels in the component.
	Area int

	// Bounds is the bounding box of the component (Max exclusive).
	Bounds image.Rectangle

	// Start is the first pixel of the component in raster order. Its west
	// neighbour is always background, which makes it a valid starting point
	// for boundary tracing.
	Start image.Point

	// External reports whether the component touches the background that
	// surrounds the whole image, i.e. it is not nested inside a hole of
	// another component.
	External bool
}

// Labels is the result of connected-component labelling.
type Labels struct {
	Width, Height int
	Origin        image.Point

	// Grid holds the component label of every pixel, 0 for background.
	Grid       []int
	Components []Component
}

func (l *Labels) at(x, y int) int {
	if x < 0 || y < 0 || x >= l.Width || y >= l.Height {
		return 0
	}
	return l.Grid[y*l.Width+x]
}

// Contour is an ordered closed boundary in pixel coordinates.
type Contour []image.Point

// LabelComponents groups the foreground pixels of mask (any non-zero value)
// into 8-connected components and marks which of them are external.
//
// Coordinates in the returned components are absolute, i.e. they include
// mask.Bounds().Min.
func LabelComponents(mask *image.Gray) *Labels {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	l := &Labels{Width: w, Height: h, Origin: b.Min, Grid: make([]int, w*h)}

	fg := func(x, y int) bool {
		return mask.Pix[y*mask.Stride+x] != 0
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !fg(x, y) || l.Grid[y*w+x] != 0 {
				continue
			}
			label := len(l.Components) + 1
			comp := floodFill(l, fg, x, y, label)
			comp.Bounds = comp.Bounds.Add(b.Min)
			comp.Start = comp.Start.Add(b.Min)
			l.Components = append(l.Components, comp)
		}
	}

	markExternal(l)
	return l
}

// floodFill performs iterative flood-fill from a starting point.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow
// on large components. Uses 8-connectivity (includes diagonal neighbors).
func floodFill(l *Labels, fg func(x, y int) bool, startX, startY, label int) Component {
	comp := Component{
		Label:  label,
		Start:  image.Point{X: startX, Y: startY},
		Bounds: image.Rect(startX, startY, startX+1, startY+1),
	}
	stack := []image.Point{{X: startX, Y: startY}}
	l.Grid[startY*l.Width+startX] = label

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		comp.Area++
		comp.Bounds = comp.Bounds.Union(image.Rect(p.X, p.Y, p.X+1, p.Y+1))

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := p.X+dx, p.Y+dy
				if nx < 0 || ny < 0 || nx >= l.Width || ny >= l.Height {
					continue
				}
				if l.Grid[ny*l.Width+nx] != 0 || !fg(nx, ny) {
					continue
				}
				l.Grid[ny*l.Width+nx] = label
				stack = append(stack, image.Point{X: nx, Y: ny})
			}
		}
	}
	return comp
}

// markExternal floods the background from the image border (4-connected, the
// dual of 8-connected foreground) and flags every component that borders it.
func markExternal(l *Labels) {
	w, h := l.Width, l.Height
	if w == 0 || h == 0 {
		return
	}
	outside := make([]bool, w*h)
	var stack []image.Point
	push := func(x, y int) {
		i := y*w + x
		if l.Grid[i] != 0 || outside[i] {
			return
		}
		outside[i] = true
		stack = append(stack, image.Point{X: x, Y: y})
	}
	external := func(x, y int) {
		if label := l.at(x, y); label != 0 {
			l.Components[label-1].External = true
		}
	}

	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
		external(x, 0)
		external(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
		external(0, y)
		external(w-1, y)
	}

	four := [4]image.Point{{X: 1}, {X: -1}, {Y: 1}, {Y: -1}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range four {
			nx, ny := p.X+d.X, p.Y+d.Y
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			if l.Grid[ny*w+nx] != 0 {
				external(nx, ny)
				continue
			}
			push(nx, ny)
		}
	}
}

// moore lists the 8 neighbours clockwise (y grows downward) starting west.
var moore = [8]image.Point{
	{X: -1, Y: 0}, {X: -1, Y: -1}, {X: 0, Y: -1}, {X: 1, Y: -1},
	{X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}, {X: -1, Y: 1},
}

func mooreIndex(d image.Point) int {
	for i, m := range moore {
		if m == d {
			return i
		}
	}
	return 0
}

// TraceBoundary returns the outer boundary of the component with the given
// label using Moore-neighbour tracing. Points are in absolute coordinates.
func (l *Labels) TraceBoundary(comp Component) Contour {
	start := comp.Start.Sub(l.Origin)
	in := func(p image.Point) bool {
		return l.at(p.X, p.Y) == comp.Label
	}

	contour := Contour{start}
	cur := start
	back := 0 // west of the raster-first pixel is background
	var first image.Point
	limit := 8*comp.Area + 16

	for step := 0; step < limit; step++ {
		found := false
		var next image.Point
		var dir int
		for i := 1; i <= 8; i++ {
			d := (back + i) % 8
			p := cur.Add(moore[d])
			if in(p) {
				next, dir, found = p, d, true
				break
			}
		}
		if !found {
			break // isolated pixel
		}
		if step == 0 {
			first = next
		} else if cur == start && next == first {
			break
		}
		background := cur.Add(moore[(dir+7)%8])
		cur = next
		back = mooreIndex(background.Sub(cur))
		contour = append(contour, cur)
	}

	if n := len(contour); n > 1 && contour[n-1] == start {
		contour = contour[:n-1]
	}
	for i := range contour {
		contour[i] = contour[i].Add(l.Origin)
	}
	return contour
}

// ExternalContours traces the outer boundary of every external component of
// mask and returns them sorted by descending enclosed area.
func ExternalContours(mask *image.Gray) []Contour {
	labels := LabelComponents(mask)
	contours := make([]Contour, 0)
	for _, comp := range labels.Components {
		if !comp.External {
			continue
		}
		contours = append(contours, labels.TraceBoundary(comp))
	}
	sort.SliceStable(contours, func(i, j int) bool {
		return contours[i].Area() > contours[j].Area()
	})
	return contours
}

// Area is the polygon area enclosed by the contour (shoelace formula).
func (c Contour) Area() float64 {
	return polygonArea(c)
}

// Perimeter is the closed arc length of the contour.
func (c Contour) Perimeter() float64 {
	n := len(c)
	if n < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += dist(c[i], c[(i+1)%n])
	}
	return sum
}

func polygonArea(pts []image.Point) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	var sum int
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(float64(sum)) / 2
}

func dist(a, b image.Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
