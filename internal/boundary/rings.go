package boundary

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/serjvanilla/go-overpass"
)

// assemble joins the relation's member ways into polygons. Outer rings
// wind counter-clockwise; each inner ring winds clockwise and is attached to
// the first outer ring containing it. It also returns the number of ways
// that could not be closed into a ring.
func assemble(rel *overpass.Relation) (orb.MultiPolygon, int) {
	var outer, inner [][]orb.Point
	for _, m := range rel.Members {
		if m.Type != overpass.ElementTypeWay || m.Way == nil {
			continue
		}
		line := wayLine(m.Way)
		if len(line) < 2 {
			continue
		}
		switch m.Role {
		case "inner":
			inner = append(inner, line)
		default:
			outer = append(outer, line)
		}
	}

	outerRings, droppedOuter := joinRings(outer)
	innerRings, droppedInner := joinRings(inner)

	mp := make(orb.MultiPolygon, 0, len(outerRings))
	for _, r := range outerRings {
		orient(r, orb.CCW)
		mp = append(mp, orb.Polygon{r})
	}
	for _, hole := range innerRings {
		orient(hole, orb.CW)
		for i := range mp {
			if planar.RingContains(mp[i][0], hole[0]) {
				mp[i] = append(mp[i], hole)
				break
			}
		}
	}
	return mp, droppedOuter + droppedInner
}

func wayLine(w *overpass.Way) []orb.Point {
	pts := make([]orb.Point, 0, len(w.Nodes))
	for _, n := range w.Nodes {
		if n == nil {
			continue
		}
		pts = append(pts, orb.Point{n.Lon, n.Lat})
	}
	return pts
}

// joinRings chains line segments end to end until each chain closes.
// Segments may be reversed to fit. Chains that never close are dropped and
// their segments counted.
func joinRings(lines [][]orb.Point) ([]orb.Ring, int) {
	used := make([]bool, len(lines))
	var rings []orb.Ring
	dropped := 0

	for i := range lines {
		if used[i] {
			continue
		}
		used[i] = true
		chain := append([]orb.Point(nil), lines[i]...)
		parts := 1

		for !closed(chain) {
			next := -1
			end := chain[len(chain)-1]
			for j := range lines {
				if used[j] {
					continue
				}
				l := lines[j]
				switch end {
				case l[0]:
					chain = append(chain, l[1:]...)
					next = j
				case l[len(l)-1]:
					for k := len(l) - 2; k >= 0; k-- {
						chain = append(chain, l[k])
					}
					next = j
				}
				if next >= 0 {
					break
				}
			}
			if next < 0 {
				break
			}
			used[next] = true
			parts++
		}

		if !closed(chain) || len(chain) < 4 {
			dropped += parts
			continue
		}
		rings = append(rings, orb.Ring(chain))
	}
	return rings, dropped
}

// orient reverses r in place unless it already winds in direction o.
func orient(r orb.Ring, o orb.Orientation) {
	if r.Orientation() != o {
		r.Reverse()
	}
}

func closed(chain []orb.Point) bool {
	return len(chain) > 2 && chain[0] == chain[len(chain)-1]
}
