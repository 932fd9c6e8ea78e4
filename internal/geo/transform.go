package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// GDA94, GDA2020 and WGS84 are treated as coincident; the datum shift is
// below the resolution of the land-cover products.

func toGeographic(c CRS) orb.Projection {
	switch {
	case c.Geographic:
		return nil
	case c.EPSG == EPSGWebMercator:
		return project.Mercator.ToWGS84
	default:
		return australianAlbers.inverse
	}
}

func fromGeographic(c CRS) orb.Projection {
	switch {
	case c.Geographic:
		return nil
	case c.EPSG == EPSGWebMercator:
		return project.WGS84.ToMercator
	default:
		return australianAlbers.forward
	}
}

// Projection returns the point conversion from one CRS to another.
func Projection(from, to CRS) (orb.Projection, error) {
	if _, err := LookupEPSG(from.EPSG); err != nil {
		return nil, err
	}
	if _, err := LookupEPSG(to.EPSG); err != nil {
		return nil, err
	}

	inv := toGeographic(from)
	fwd := fromGeographic(to)
	return func(p orb.Point) orb.Point {
		if inv != nil {
			p = inv(p)
		}
		if fwd != nil {
			p = fwd(p)
		}
		return p
	}, nil
}

// Transform returns a copy of g converted from one CRS to another. The input
// geometry is not modified.
func Transform(g orb.Geometry, from, to CRS) (orb.Geometry, error) {
	if g == nil {
		return nil, nil
	}
	if from.EPSG == to.EPSG {
		return orb.Clone(g), nil
	}
	proj, err := Projection(from, to)
	if err != nil {
		return nil, err
	}
	return project.Geometry(orb.Clone(g), proj), nil
}

// TransformPoint converts a single point.
func TransformPoint(p orb.Point, from, to CRS) (orb.Point, error) {
	proj, err := Projection(from, to)
	if err != nil {
		return orb.Point{}, err
	}
	return proj(p), nil
}

// TransformBound converts a bound by densifying each edge before projecting,
// so curved edges in the target CRS are still covered.
func TransformBound(b orb.Bound, from, to CRS) (orb.Bound, error) {
	if from.EPSG == to.EPSG {
		return b, nil
	}
	proj, err := Projection(from, to)
	if err != nil {
		return orb.Bound{}, err
	}

	const steps = 32
	out := orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{-1, -1}}
	extend := func(p orb.Point) {
		q := proj(p)
		if out.Min[0] > out.Max[0] {
			out = orb.Bound{Min: q, Max: q}
			return
		}
		out = out.Extend(q)
	}
	dx := (b.Max[0] - b.Min[0]) / steps
	dy := (b.Max[1] - b.Min[1]) / steps
	for i := 0; i <= steps; i++ {
		x := b.Min[0] + float64(i)*dx
		y := b.Min[1] + float64(i)*dy
		extend(orb.Point{x, b.Min[1]})
		extend(orb.Point{x, b.Max[1]})
		extend(orb.Point{b.Min[0], y})
		extend(orb.Point{b.Max[0], y})
	}
	return out, nil
}
