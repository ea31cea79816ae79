// Package validate implements the per-feature geometry quality checks:
// validity and simplicity, spikes, slivers, short and small features,
// structural vertex rules and dangling-endpoint classification. Checks
// never fail on bad data: every detectable condition is expressed as a
// finding, and a check that cannot measure something stays silent.
package validate

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/geometry"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

// Params carries the thresholds shared by the geometry checks. All
// distances and areas are in dataset units.
type Params struct {
	// MinLineLength flags shorter line parts.
	MinLineLength float64
	// MinPolygonArea flags smaller polygon parts.
	MinPolygonArea float64

	// SliverMaxArea, SliverMaxCompactness and SliverMinElongation must
	// all agree before a polygon part counts as a sliver.
	SliverMaxArea        float64
	SliverMaxCompactness float64
	SliverMinElongation  float64

	// SpikeMaxAngleDeg is the interior angle below which a vertex is a
	// spike candidate.
	SpikeMaxAngleDeg float64
	// SpikeReportAll reports every candidate instead of only the
	// sharpest one.
	SpikeReportAll bool

	// RingClosureTolerance bounds the allowed gap between a ring's
	// first and last vertex.
	RingClosureTolerance float64

	// DangleSearchDistance bounds the neighbour search around a
	// dangling endpoint.
	DangleSearchDistance float64
	// DangleSnapTolerance is the distance under which an endpoint
	// counts as connected rather than dangling.
	DangleSnapTolerance float64
}

// DefaultParams returns the thresholds used when the configuration
// leaves them unset.
func DefaultParams() Params {
	return Params{
		MinLineLength:        0.01,
		MinPolygonArea:       0.01,
		SliverMaxArea:        1.0,
		SliverMaxCompactness: 0.1,
		SliverMinElongation:  10,
		SpikeMaxAngleDeg:     10,
		RingClosureTolerance: 1e-9,
		DangleSearchDistance: 1.0,
		DangleSnapTolerance:  1e-6,
	}
}

// Validate rejects threshold combinations the checks cannot work with.
// Invalid thresholds are an error, never silently replaced.
func (p Params) Validate() error {
	if p.MinLineLength < 0 {
		return fmt.Errorf("minimum line length %g is negative", p.MinLineLength)
	}
	if p.MinPolygonArea < 0 {
		return fmt.Errorf("minimum polygon area %g is negative", p.MinPolygonArea)
	}
	if p.SliverMaxArea < 0 {
		return fmt.Errorf("sliver area threshold %g is negative", p.SliverMaxArea)
	}
	if p.SliverMaxCompactness <= 0 || p.SliverMaxCompactness > 1 {
		return fmt.Errorf("sliver compactness threshold %g is outside (0, 1]", p.SliverMaxCompactness)
	}
	if p.SliverMinElongation < 1 {
		return fmt.Errorf("sliver elongation threshold %g is below 1", p.SliverMinElongation)
	}
	if p.SpikeMaxAngleDeg <= 0 || p.SpikeMaxAngleDeg >= 180 {
		return fmt.Errorf("spike angle threshold %g° is outside (0, 180)", p.SpikeMaxAngleDeg)
	}
	if p.RingClosureTolerance < 0 {
		return fmt.Errorf("ring closure tolerance %g is negative", p.RingClosureTolerance)
	}
	if p.DangleSearchDistance < 0 {
		return fmt.Errorf("dangle search distance %g is negative", p.DangleSearchDistance)
	}
	if p.DangleSnapTolerance < 0 {
		return fmt.Errorf("dangle snap tolerance %g is negative", p.DangleSnapTolerance)
	}
	if p.DangleSearchDistance > 0 && p.DangleSnapTolerance >= p.DangleSearchDistance {
		return fmt.Errorf("dangle snap tolerance %g must be below the search distance %g",
			p.DangleSnapTolerance, p.DangleSearchDistance)
	}
	return nil
}

// Checker is one per-feature geometry check.
type Checker interface {
	Name() string
	Check(ref source.Ref, g geom.T) []finding.Finding
}

// newFinding assembles a located finding. A location that is missing or
// not finite is left unset for the resolver to deal with.
func newFinding(code finding.Code, ref source.Ref, msg string, g geom.T, loc geom.Coord) finding.Finding {
	f := finding.Finding{
		Code:     code,
		Severity: finding.DefaultSeverity(code),
		Ref:      ref,
		Message:  msg,
		Kind:     geometry.KindOf(g),
	}
	if geometry.FiniteCoord(loc) {
		f.Location = &finding.Location{X: loc.X(), Y: loc.Y()}
	}
	return f
}

func finiteValue(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
