// Package geometry holds the planar primitives shared by the indexing,
// validation and resolution layers: envelopes, geometry kind tags and
// coordinate helpers built on go-geom types.
package geometry

import (
	"github.com/twpayne/go-geom"
)

// Kind labels the broad geometry family of a feature.
type Kind string

const (
	KindPoint   Kind = "point"
	KindLine    Kind = "line"
	KindPolygon Kind = "polygon"
)

// KindOf maps a concrete geometry to its family. Collections take the
// kind of their first non-empty member; an unknown or empty geometry
// yields "".
func KindOf(g geom.T) Kind {
	switch t := g.(type) {
	case *geom.Point, *geom.MultiPoint:
		return KindPoint
	case *geom.LineString, *geom.MultiLineString:
		return KindLine
	case *geom.Polygon, *geom.MultiPolygon:
		return KindPolygon
	case *geom.GeometryCollection:
		for i := 0; i < t.NumGeoms(); i++ {
			if k := KindOf(t.Geom(i)); k != "" {
				return k
			}
		}
	}
	return ""
}

// IsEmpty reports whether the geometry is nil or carries no coordinates.
func IsEmpty(g geom.T) bool {
	if g == nil {
		return true
	}
	if gc, ok := g.(*geom.GeometryCollection); ok {
		for i := 0; i < gc.NumGeoms(); i++ {
			if !IsEmpty(gc.Geom(i)) {
				return false
			}
		}
		return true
	}
	return len(g.FlatCoords()) == 0
}

// Polygons extracts the polygonal parts of a geometry. Non-polygonal
// geometries yield nil.
func Polygons(g geom.T) []*geom.Polygon {
	switch t := g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{t}
	case *geom.MultiPolygon:
		parts := make([]*geom.Polygon, 0, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			parts = append(parts, t.Polygon(i))
		}
		return parts
	case *geom.GeometryCollection:
		var parts []*geom.Polygon
		for i := 0; i < t.NumGeoms(); i++ {
			parts = append(parts, Polygons(t.Geom(i))...)
		}
		return parts
	}
	return nil
}

// Lines extracts the linear parts of a geometry. Non-linear geometries
// yield nil; polygon boundaries are not treated as lines.
func Lines(g geom.T) []*geom.LineString {
	switch t := g.(type) {
	case *geom.LineString:
		return []*geom.LineString{t}
	case *geom.MultiLineString:
		parts := make([]*geom.LineString, 0, t.NumLineStrings())
		for i := 0; i < t.NumLineStrings(); i++ {
			parts = append(parts, t.LineString(i))
		}
		return parts
	case *geom.GeometryCollection:
		var parts []*geom.LineString
		for i := 0; i < t.NumGeoms(); i++ {
			parts = append(parts, Lines(t.Geom(i))...)
		}
		return parts
	}
	return nil
}
