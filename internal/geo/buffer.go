package geo

import (
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"

	"github.com/aus-land-clearing/landcover/internal/errors"
)

// bufferQuadSegments is the number of segments per quarter circle.
const bufferQuadSegments = 16

// Buffer expands every polygon of g by distance, in the units of g's CRS.
// Each polygon is replaced by the Minkowski sum of its convex hull and a disk,
// which over-covers concave outlines and drops holes.
func Buffer(g orb.Geometry, distance float64) (orb.Geometry, error) {
	if distance < 0 {
		return nil, errors.Newf("buffer distance must not be negative, got %v", distance).
			Component("geo").
			Category(errors.CategoryValidation).
			Context("distance", distance).
			Build()
	}
	if distance == 0 {
		return orb.Clone(g), nil
	}

	switch geom := g.(type) {
	case orb.Polygon:
		return bufferPolygon(geom, distance), nil
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(geom))
		for _, p := range geom {
			if len(p) == 0 || len(p[0]) == 0 {
				continue
			}
			out = append(out, bufferPolygon(p, distance))
		}
		return out, nil
	default:
		return nil, errors.New(fmt.Errorf("cannot buffer %s geometry", g.GeoJSONType())).
			Component("geo").
			Category(errors.CategoryGeometry).
			Build()
	}
}

func bufferPolygon(p orb.Polygon, distance float64) orb.Polygon {
	if len(p) == 0 {
		return orb.Polygon{}
	}
	hull := convexHull(p[0])

	n := 4 * bufferQuadSegments
	disk := make([]orb.Point, n)
	for i := range n {
		a := 2 * math.Pi * float64(i) / float64(n)
		disk[i] = orb.Point{distance * math.Cos(a), distance * math.Sin(a)}
	}

	sum := make([]orb.Point, 0, len(hull)*n)
	for _, v := range hull {
		for _, d := range disk {
			sum = append(sum, orb.Point{v[0] + d[0], v[1] + d[1]})
		}
	}

	ring := orb.Ring(convexHull(sum))
	if len(ring) > 0 {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}
}

// convexHull returns the counter-clockwise hull of pts without a closing
// point (Andrew's monotone chain).
func convexHull(pts []orb.Point) []orb.Point {
	sorted := slices.Clone(pts)
	slices.SortFunc(sorted, func(a, b orb.Point) int {
		if a[0] != b[0] {
			if a[0] < b[0] {
				return -1
			}
			return 1
		}
		switch {
		case a[1] < b[1]:
			return -1
		case a[1] > b[1]:
			return 1
		}
		return 0
	})
	sorted = slices.Compact(sorted)
	if len(sorted) < 3 {
		return sorted
	}

	cross := func(o, a, b orb.Point) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}

	hull := make([]orb.Point, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}
