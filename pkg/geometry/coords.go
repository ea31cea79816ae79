package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Distance returns the planar distance between two coordinates.
func Distance(a, b geom.Coord) float64 {
	return math.Hypot(b.X()-a.X(), b.Y()-a.Y())
}

func finite(c geom.Coord) bool {
	if len(c) < 2 {
		return false
	}
	for _, v := range c[:2] {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// FiniteCoord reports whether a coordinate has finite X and Y.
func FiniteCoord(c geom.Coord) bool { return finite(c) }

// Centroid computes the mass centroid of a geometry: area centroid for
// polygons, length centroid for lines, mean for points. Degenerate
// geometries fall back to the envelope center. The boolean is false when
// no finite coordinate can be produced at all.
func Centroid(g geom.T) (geom.Coord, bool) {
	if IsEmpty(g) {
		return nil, false
	}
	var c geom.Coord
	switch t := g.(type) {
	case *geom.Point:
		c = t.Coords()
	case *geom.MultiPoint:
		pts := make([]*geom.Point, 0, t.NumPoints())
		for i := 0; i < t.NumPoints(); i++ {
			pts = append(pts, t.Point(i))
		}
		c = xy.PointsCentroid(pts[0], pts[1:]...)
	case *geom.LineString:
		c = xy.LinesCentroid(t)
	case *geom.MultiLineString:
		lines := Lines(t)
		c = xy.LinesCentroid(lines[0], lines[1:]...)
	case *geom.Polygon:
		c = xy.AreaCentroid(t)
	case *geom.MultiPolygon:
		polys := Polygons(t)
		c = xy.AreaCentroid(polys[0], polys[1:]...)
	}
	if finite(c) {
		return geom.Coord{c.X(), c.Y()}, true
	}
	if env := EnvelopeOf(g); env.Valid() {
		return env.Center(), true
	}
	return nil, false
}

// RepresentativeCoord picks a cheap on-feature coordinate: the point
// itself, the first vertex of a line, the exterior ring's midpoint vertex
// of a polygon, and the envelope center for anything else.
func RepresentativeCoord(g geom.T) (geom.Coord, bool) {
	if IsEmpty(g) {
		return nil, false
	}
	switch t := g.(type) {
	case *geom.Point:
		c := t.Coords()
		return geom.Coord{c.X(), c.Y()}, finite(c)
	case *geom.LineString:
		c := t.Coord(0)
		return geom.Coord{c.X(), c.Y()}, finite(c)
	case *geom.Polygon:
		if t.NumLinearRings() > 0 {
			ring := t.LinearRing(0)
			if n := ring.NumCoords(); n > 0 {
				c := ring.Coord(n / 2)
				return geom.Coord{c.X(), c.Y()}, finite(c)
			}
		}
	}
	if env := EnvelopeOf(g); env.Valid() {
		return env.Center(), true
	}
	return nil, false
}

// MidpointVertex returns the middle vertex of a line string.
func MidpointVertex(ls *geom.LineString) (geom.Coord, bool) {
	n := ls.NumCoords()
	if n == 0 {
		return nil, false
	}
	c := ls.Coord(n / 2)
	return geom.Coord{c.X(), c.Y()}, finite(c)
}

// RingPerimeter sums the segment lengths of a linear ring.
func RingPerimeter(ring *geom.LinearRing) float64 {
	var total float64
	n := ring.NumCoords()
	for i := 1; i < n; i++ {
		total += Distance(ring.Coord(i-1), ring.Coord(i))
	}
	return total
}

// LineLength sums the segment lengths of a line string.
func LineLength(ls *geom.LineString) float64 {
	var total float64
	n := ls.NumCoords()
	for i := 1; i < n; i++ {
		total += Distance(ls.Coord(i-1), ls.Coord(i))
	}
	return total
}

// NearestOnSegment projects p onto the segment ab and clamps to the
// segment ends.
func NearestOnSegment(p, a, b geom.Coord) geom.Coord {
	dx := b.X() - a.X()
	dy := b.Y() - a.Y()
	if dx == 0 && dy == 0 {
		return geom.Coord{a.X(), a.Y()}
	}
	t := ((p.X()-a.X())*dx + (p.Y()-a.Y())*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return geom.Coord{a.X() + t*dx, a.Y() + t*dy}
}

// NearestOnLine returns the closest point of a line string to p along
// with its distance. The boolean is false for degenerate lines.
func NearestOnLine(ls *geom.LineString, p geom.Coord) (geom.Coord, float64, bool) {
	n := ls.NumCoords()
	if n == 0 {
		return nil, 0, false
	}
	if n == 1 {
		c := ls.Coord(0)
		return geom.Coord{c.X(), c.Y()}, Distance(p, c), true
	}
	var (
		best     geom.Coord
		bestDist = math.Inf(1)
	)
	for i := 1; i < n; i++ {
		q := NearestOnSegment(p, ls.Coord(i-1), ls.Coord(i))
		if d := Distance(p, q); d < bestDist {
			best, bestDist = q, d
		}
	}
	return best, bestDist, true
}
