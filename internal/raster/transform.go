package raster

import (
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"
)

// Transform is an affine pixel-to-map transform:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
type Transform struct {
	A, B, C, D, E, F float64
}

// Identity is the zero-origin unit transform.
var Identity = Transform{A: 1, E: 1}

// FromBounds maps a width x height grid onto a north-up box.
func FromBounds(west, south, east, north float64, width, height int) Transform {
	return Transform{
		A: (east - west) / float64(width),
		C: west,
		E: -(north - south) / float64(height),
		F: north,
	}
}

// TransformFromCoords builds a north-up transform from cell-centre labels.
// The cell size is the label spacing; single-label axes use res. ok is false
// when either axis has no labels.
func TransformFromCoords(xs, ys []float64, res float64) (Transform, bool) {
	if len(xs) == 0 || len(ys) == 0 {
		return Identity, false
	}
	if res <= 0 {
		res = 1
	}
	edges := func(v []float64) (lo, hi float64) {
		lo, hi = slices.Min(v), slices.Max(v)
		step := res
		if len(v) > 1 {
			step = (hi - lo) / float64(len(v)-1)
		}
		return lo - step/2, hi + step/2
	}
	west, east := edges(xs)
	south, north := edges(ys)
	return FromBounds(west, south, east, north, len(xs), len(ys)), true
}

// Apply maps a pixel position to map coordinates.
func (t Transform) Apply(col, row float64) (x, y float64) {
	return t.A*col + t.B*row + t.C, t.D*col + t.E*row + t.F
}

// Invert maps map coordinates back to a fractional pixel position.
func (t Transform) Invert(x, y float64) (col, row float64, err error) {
	det := t.A*t.E - t.B*t.D
	if det == 0 {
		return 0, 0, fmt.Errorf("transform is not invertible")
	}
	dx, dy := x-t.C, y-t.F
	return (t.E*dx - t.B*dy) / det, (-t.D*dx + t.A*dy) / det, nil
}

// PixelSize returns the absolute cell width and height.
func (t Transform) PixelSize() (float64, float64) {
	return math.Hypot(t.A, t.D), math.Hypot(t.B, t.E)
}

// IsRectilinear reports whether the transform has no rotation terms.
func (t Transform) IsRectilinear() bool {
	return t.B == 0 && t.D == 0
}

// Grid is a north-up pixel grid in some CRS.
type Grid struct {
	Width, Height int
	Transform     Transform
	CRS           string
}

// NewGrid covers b with square cells of size res. Each axis has at least
// one cell.
func NewGrid(b orb.Bound, res float64, crs string) Grid {
	w := max(int(math.Ceil((b.Max[0]-b.Min[0])/res)), 1)
	h := max(int(math.Ceil((b.Max[1]-b.Min[1])/res)), 1)
	return Grid{
		Width:     w,
		Height:    h,
		Transform: Transform{A: res, C: b.Min[0], E: -res, F: b.Max[1]},
		CRS:       crs,
	}
}

// Cells returns the number of cells.
func (g Grid) Cells() int {
	return g.Width * g.Height
}

// XCoords returns cell-centre x labels.
func (g Grid) XCoords() []float64 {
	out := make([]float64, g.Width)
	for i := range out {
		out[i], _ = g.Transform.Apply(float64(i)+0.5, 0)
	}
	return out
}

// YCoords returns cell-centre y labels, north first.
func (g Grid) YCoords() []float64 {
	out := make([]float64, g.Height)
	for i := range out {
		_, out[i] = g.Transform.Apply(0, float64(i)+0.5)
	}
	return out
}

// Bound returns the grid extent.
func (g Grid) Bound() orb.Bound {
	x0, y0 := g.Transform.Apply(0, 0)
	x1, y1 := g.Transform.Apply(float64(g.Width), float64(g.Height))
	return orb.Bound{
		Min: orb.Point{min(x0, x1), min(y0, y1)},
		Max: orb.Point{max(x0, x1), max(y0, y1)},
	}
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}
