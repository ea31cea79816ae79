package geometry

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
)

// An Envelope is an axis-aligned bounding rectangle in dataset units.
// The zero value is a degenerate envelope at the origin; use EnvelopeOf
// to derive one from a geometry.
type Envelope struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// EnvelopeOf computes the bounding envelope of a geometry. An empty
// geometry yields an inverted envelope that intersects nothing.
func EnvelopeOf(g geom.T) Envelope {
	b := g.Bounds()
	return Envelope{MinX: b.Min(0), MinY: b.Min(1), MaxX: b.Max(0), MaxY: b.Max(1)}
}

// EnvelopeOfCoord returns the degenerate envelope covering a single coordinate.
func EnvelopeOfCoord(c geom.Coord) Envelope {
	return Envelope{MinX: c.X(), MinY: c.Y(), MaxX: c.X(), MaxY: c.Y()}
}

// Expand grows the envelope by d on every side. Negative d shrinks it.
func (e Envelope) Expand(d float64) Envelope {
	return Envelope{MinX: e.MinX - d, MinY: e.MinY - d, MaxX: e.MaxX + d, MaxY: e.MaxY + d}
}

// Intersects reports whether the two envelopes share at least one point.
// Touching edges count as intersecting.
func (e Envelope) Intersects(o Envelope) bool {
	return e.MinX <= o.MaxX && o.MinX <= e.MaxX && e.MinY <= o.MaxY && o.MinY <= e.MaxY
}

// Union returns the smallest envelope covering both operands.
func (e Envelope) Union(o Envelope) Envelope {
	return Envelope{
		MinX: math.Min(e.MinX, o.MinX),
		MinY: math.Min(e.MinY, o.MinY),
		MaxX: math.Max(e.MaxX, o.MaxX),
		MaxY: math.Max(e.MaxY, o.MaxY),
	}
}

// Width returns the horizontal extent.
func (e Envelope) Width() float64 { return e.MaxX - e.MinX }

// Height returns the vertical extent.
func (e Envelope) Height() float64 { return e.MaxY - e.MinY }

// Center returns the midpoint of the envelope.
func (e Envelope) Center() geom.Coord {
	return geom.Coord{(e.MinX + e.MaxX) / 2, (e.MinY + e.MaxY) / 2}
}

// Valid reports whether the envelope is finite and not inverted.
func (e Envelope) Valid() bool {
	if math.IsNaN(e.MinX) || math.IsNaN(e.MinY) || math.IsNaN(e.MaxX) || math.IsNaN(e.MaxY) {
		return false
	}
	if math.IsInf(e.MinX, 0) || math.IsInf(e.MinY, 0) || math.IsInf(e.MaxX, 0) || math.IsInf(e.MaxY, 0) {
		return false
	}
	return e.MinX <= e.MaxX && e.MinY <= e.MaxY
}

func (e Envelope) String() string {
	return fmt.Sprintf("[%g %g, %g %g]", e.MinX, e.MinY, e.MaxX, e.MaxY)
}
