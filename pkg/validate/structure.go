package validate

import (
	"fmt"

	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/geometry"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

// StructureCheck enforces the structural vertex rules: a line needs at
// least two points and a ring at least four with its first and last
// vertex coincident within the closure tolerance.
type StructureCheck struct {
	closureTol float64
}

func NewStructureCheck(p Params) *StructureCheck {
	return &StructureCheck{closureTol: p.RingClosureTolerance}
}

func (c *StructureCheck) Name() string { return "structure" }

func (c *StructureCheck) Check(ref source.Ref, g geom.T) []finding.Finding {
	var out []finding.Finding
	for _, ls := range geometry.Lines(g) {
		n := ls.NumCoords()
		if n == 0 || n >= 2 {
			continue
		}
		out = append(out, newFinding(finding.CodeTooFewVertices, ref,
			"line has 1 point, need at least 2", g, firstCoord(ls.Coord(0), g)))
	}
	for _, poly := range geometry.Polygons(g) {
		for r := 0; r < poly.NumLinearRings(); r++ {
			ring := poly.LinearRing(r)
			n := ring.NumCoords()
			if n == 0 {
				continue
			}
			if n < 4 {
				msg := fmt.Sprintf("ring has %d points, need at least 4", n)
				out = append(out, newFinding(finding.CodeTooFewVertices, ref,
					msg, g, firstCoord(ring.Coord(0), g)))
				continue
			}
			first, last := ring.Coord(0), ring.Coord(n-1)
			if gap := geometry.Distance(first, last); gap > c.closureTol {
				msg := fmt.Sprintf("ring endpoints are %.4g apart", gap)
				out = append(out, newFinding(finding.CodeRingNotClosed, ref,
					msg, g, geom.Coord{last.X(), last.Y()}))
			}
		}
	}
	return out
}

// firstCoord falls back to the envelope centre when the vertex is not
// finite.
func firstCoord(c geom.Coord, g geom.T) geom.Coord {
	if geometry.FiniteCoord(c) {
		return geom.Coord{c.X(), c.Y()}
	}
	return envelopeCenter(g)
}
