// Package finding defines the defect records produced by quality checks
// and the sinks that collect them for reporting.
package finding

import (
	"fmt"

	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-spatial-check/pkg/geometry"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

// Code identifies one class of data defect.
type Code string

// Defect classes, grouped by the stage that raises them.
const (
	// CodeMissingGeometry flags a record with no geometry at all.
	CodeMissingGeometry Code = "completeness.missing-geometry"
	// CodeEmptyTable flags a table that contains no features.
	CodeEmptyTable Code = "completeness.empty-table"

	// CodeFieldMissing flags a required attribute column absent from a table.
	CodeFieldMissing Code = "schema.field-missing"
	// CodeFieldType flags an attribute column with an unexpected type.
	CodeFieldType Code = "schema.field-type"

	// CodeInvalidGeometry flags a geometry rejected by the validity test.
	CodeInvalidGeometry Code = "geometry.invalid"
	// CodeNonSimpleGeometry flags a self-touching or self-crossing geometry.
	CodeNonSimpleGeometry Code = "geometry.non-simple"
	// CodeSpike flags an abnormally acute vertex angle.
	CodeSpike Code = "geometry.spike"
	// CodeSliver flags a thin low-area polygon artifact.
	CodeSliver Code = "geometry.sliver"
	// CodeShortLine flags a line below the minimum length.
	CodeShortLine Code = "geometry.short-line"
	// CodeSmallArea flags a polygon below the minimum area.
	CodeSmallArea Code = "geometry.small-area"
	// CodeTooFewVertices flags a geometry with fewer vertices than its
	// type requires.
	CodeTooFewVertices Code = "geometry.too-few-vertices"
	// CodeRingNotClosed flags a polygon ring whose first and last vertex
	// differ.
	CodeRingNotClosed Code = "geometry.ring-not-closed"

	// CodeUndershoot flags a dangling line endpoint short of its target.
	CodeUndershoot Code = "topology.undershoot"
	// CodeOvershoot flags a line endpoint extending past its target.
	CodeOvershoot Code = "topology.overshoot"

	// CodeDuplicate flags two features closer than the duplicate tolerance.
	CodeDuplicate Code = "relation.duplicate"
	// CodeOverlap flags two features whose interiors overlap.
	CodeOverlap Code = "relation.overlap"

	// CodeBrokenReference flags an attribute value with no counterpart in
	// the referenced table.
	CodeBrokenReference Code = "attribute.broken-reference"
)

// Severity ranks findings for reporting.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// DefaultSeverity maps a code to its reporting rank.
func DefaultSeverity(c Code) Severity {
	switch c {
	case CodeEmptyTable:
		return SeverityInfo
	case CodeSpike, CodeSliver, CodeShortLine, CodeSmallArea,
		CodeUndershoot, CodeOvershoot:
		return SeverityWarning
	}
	return SeverityError
}

// Location is an exact position in dataset coordinates. A Location is
// always a real, resolved position: findings whose position cannot be
// determined carry no Location at all rather than a made-up point.
type Location struct {
	X float64
	Y float64
}

// Finding is one detected defect. Before resolution neither Location nor
// Unlocated is set; afterwards exactly one of them is.
type Finding struct {
	Code     Code
	Severity Severity
	Ref      source.Ref
	// Target names the counterpart feature of pairwise findings.
	Target  *source.Ref
	Message string

	// Location is the resolved position, when one exists.
	Location *Location
	// Unlocated marks a finding whose position could not be determined
	// by any strategy.
	Unlocated bool

	// Kind is the geometry family of the located finding.
	Kind geometry.Kind
	// Anchor is a small geometry near the defect, kept for map output.
	Anchor geom.T
	// AnchorWKT optionally carries a producer-serialized anchor geometry.
	AnchorWKT string
}

// Located reports whether the finding has a resolved position.
func (f Finding) Located() bool { return f.Location != nil }

func (f Finding) String() string {
	s := fmt.Sprintf("%s %s", f.Code, f.Ref)
	if f.Target != nil {
		s += " -> " + f.Target.String()
	}
	if f.Message != "" {
		s += ": " + f.Message
	}
	if f.Location != nil {
		s += fmt.Sprintf(" @ (%g %g)", f.Location.X, f.Location.Y)
	}
	return s
}
