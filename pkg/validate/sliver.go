package validate

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/geometry"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

// SliverCheck flags thin low-area polygon artifacts. A part is a sliver
// only when all three thresholds agree: area at most the maximum,
// compactness (4π·area/perimeter²) at most the maximum and elongation
// (1/compactness) at least the minimum.
type SliverCheck struct {
	maxArea        float64
	maxCompactness float64
	minElongation  float64
}

func NewSliverCheck(p Params) *SliverCheck {
	return &SliverCheck{
		maxArea:        p.SliverMaxArea,
		maxCompactness: p.SliverMaxCompactness,
		minElongation:  p.SliverMinElongation,
	}
}

func (c *SliverCheck) Name() string { return "sliver" }

func (c *SliverCheck) Check(ref source.Ref, g geom.T) []finding.Finding {
	var out []finding.Finding
	for _, poly := range geometry.Polygons(g) {
		if poly.NumLinearRings() == 0 {
			continue
		}
		area := math.Abs(poly.Area())
		var perimeter float64
		for r := 0; r < poly.NumLinearRings(); r++ {
			perimeter += geometry.RingPerimeter(poly.LinearRing(r))
		}
		// zero-area and zero-perimeter parts belong to the structure and
		// size checks
		if area <= 0 || perimeter <= 0 || !finiteValue(area) || !finiteValue(perimeter) {
			continue
		}
		compactness := 4 * math.Pi * area / (perimeter * perimeter)
		elongation := 1 / compactness
		if area > c.maxArea || compactness > c.maxCompactness || elongation < c.minElongation {
			continue
		}
		loc := ringMidpoint(poly.LinearRing(0))
		if !geometry.FiniteCoord(loc) {
			loc = envelopeCenter(poly)
		}
		msg := fmt.Sprintf("sliver polygon: area %.4g, compactness %.4g, elongation %.4g",
			area, compactness, elongation)
		out = append(out, newFinding(finding.CodeSliver, ref, msg, g, loc))
	}
	return out
}

// ringMidpoint picks the vertex halfway along a ring.
func ringMidpoint(ring *geom.LinearRing) geom.Coord {
	n := ring.NumCoords()
	if n == 0 {
		return nil
	}
	c := ring.Coord(n / 2)
	return geom.Coord{c.X(), c.Y()}
}
