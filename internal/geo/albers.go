package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// GRS80 ellipsoid.
const (
	grs80SemiMajor  = 6378137.0
	grs80Flattening = 1 / 298.257222101
)

// albers is an ellipsoidal Albers equal-area conic projection.
type albers struct {
	a, e, e2       float64
	lon0           float64
	n, c, rho0     float64
	falseE, falseN float64
}

// australianAlbers holds the parameters shared by EPSG:3577 and EPSG:9473:
// standard parallels 18S and 36S, origin 0N 132E, no false offsets.
var australianAlbers = newAlbers(-18, -36, 0, 132, 0, 0)

func newAlbers(lat1, lat2, lat0, lon0, falseE, falseN float64) *albers {
	p := &albers{
		a:      grs80SemiMajor,
		e2:     grs80Flattening * (2 - grs80Flattening),
		lon0:   lon0 * math.Pi / 180,
		falseE: falseE,
		falseN: falseN,
	}
	p.e = math.Sqrt(p.e2)

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	phi0 := lat0 * math.Pi / 180

	m1 := p.m(phi1)
	m2 := p.m(phi2)
	q1 := p.q(phi1)
	q2 := p.q(phi2)
	q0 := p.q(phi0)

	p.n = (m1*m1 - m2*m2) / (q2 - q1)
	p.c = m1*m1 + p.n*q1
	p.rho0 = p.a * math.Sqrt(p.c-p.n*q0) / p.n
	return p
}

func (p *albers) m(phi float64) float64 {
	s := math.Sin(phi)
	return math.Cos(phi) / math.Sqrt(1-p.e2*s*s)
}

func (p *albers) q(phi float64) float64 {
	s := math.Sin(phi)
	es := p.e * s
	return (1 - p.e2) * (s/(1-p.e2*s*s) - (1/(2*p.e))*math.Log((1-es)/(1+es)))
}

// forward projects lon/lat degrees to metres.
func (p *albers) forward(pt orb.Point) orb.Point {
	lambda := pt[0] * math.Pi / 180
	phi := pt[1] * math.Pi / 180

	rho := p.a * math.Sqrt(p.c-p.n*p.q(phi)) / p.n
	theta := p.n * (lambda - p.lon0)

	x := p.falseE + rho*math.Sin(theta)
	y := p.falseN + p.rho0 - rho*math.Cos(theta)
	return orb.Point{x, y}
}

// inverse converts metres back to lon/lat degrees.
func (p *albers) inverse(pt orb.Point) orb.Point {
	x := pt[0] - p.falseE
	y := pt[1] - p.falseN

	dy := p.rho0 - y
	rho := math.Hypot(x, dy)
	var theta float64
	if p.n < 0 {
		rho = -rho
		theta = math.Atan2(-x, -dy)
	} else {
		theta = math.Atan2(x, dy)
	}

	q := (p.c - rho*rho*p.n*p.n/(p.a*p.a)) / p.n
	phi := math.Asin(clamp(q/2, -1, 1))
	for range 15 {
		s := math.Sin(phi)
		es := p.e * s
		one := 1 - p.e2*s*s
		delta := one * one / (2 * math.Cos(phi)) *
			(q/(1-p.e2) - s/one + (1/(2*p.e))*math.Log((1-es)/(1+es)))
		phi += delta
		if math.Abs(delta) < 1e-12 {
			break
		}
	}

	lambda := p.lon0 + theta/p.n
	return orb.Point{lambda * 180 / math.Pi, phi * 180 / math.Pi}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
