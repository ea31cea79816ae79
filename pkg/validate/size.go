package validate

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/geometry"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

// SizeCheck flags line parts shorter than the minimum length and
// polygon parts smaller than the minimum area. Short lines are located
// at their midpoint vertex, small polygons at their envelope centre. A
// zero minimum disables the respective rule.
type SizeCheck struct {
	minLength float64
	minArea   float64
}

func NewSizeCheck(p Params) *SizeCheck {
	return &SizeCheck{minLength: p.MinLineLength, minArea: p.MinPolygonArea}
}

func (c *SizeCheck) Name() string { return "size" }

func (c *SizeCheck) Check(ref source.Ref, g geom.T) []finding.Finding {
	var out []finding.Finding
	if c.minLength > 0 {
		for _, ls := range geometry.Lines(g) {
			if ls.NumCoords() < 2 {
				continue
			}
			length := geometry.LineLength(ls)
			if !(length < c.minLength) {
				continue
			}
			loc, _ := geometry.MidpointVertex(ls)
			msg := fmt.Sprintf("line length %.4g is below the minimum %.4g", length, c.minLength)
			out = append(out, newFinding(finding.CodeShortLine, ref, msg, g, loc))
		}
	}
	if c.minArea > 0 {
		for _, poly := range geometry.Polygons(g) {
			if geometry.IsEmpty(poly) {
				continue
			}
			area := math.Abs(poly.Area())
			if !(area < c.minArea) {
				continue
			}
			msg := fmt.Sprintf("polygon area %.4g is below the minimum %.4g", area, c.minArea)
			out = append(out, newFinding(finding.CodeSmallArea, ref, msg, g, envelopeCenter(poly)))
		}
	}
	return out
}
