package geometry

import "github.com/twpayne/go-geom"

// Diagnosis is the outcome of exact validity and simplicity testing of a
// single geometry.
type Diagnosis struct {
	Valid  bool
	Simple bool
	// Reason describes why the geometry is invalid, stripped of any
	// coordinate suffix the engine appends.
	Reason string
	// Location is the offending coordinate when the engine reports one,
	// nil otherwise.
	Location geom.Coord
}
