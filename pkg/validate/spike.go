package validate

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/geometry"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

// SpikeCheck flags vertices whose interior angle is implausibly sharp.
// Ring vertices are inspected with wrap-around neighbours so a spike at
// the seam vertex is not missed; line vertices are interior-only.
type SpikeCheck struct {
	maxAngle  float64 // radians
	reportAll bool
}

func NewSpikeCheck(p Params) *SpikeCheck {
	return &SpikeCheck{
		maxAngle:  p.SpikeMaxAngleDeg * math.Pi / 180,
		reportAll: p.SpikeReportAll,
	}
}

func (c *SpikeCheck) Name() string { return "spike" }

type spikeCandidate struct {
	coord geom.Coord
	angle float64
}

func (c *SpikeCheck) Check(ref source.Ref, g geom.T) []finding.Finding {
	if geometry.IsEmpty(g) {
		return nil
	}
	var cands []spikeCandidate
	for _, ls := range geometry.Lines(g) {
		cands = append(cands, c.lineCandidates(ls)...)
	}
	for _, poly := range geometry.Polygons(g) {
		for r := 0; r < poly.NumLinearRings(); r++ {
			cands = append(cands, c.ringCandidates(poly.LinearRing(r))...)
		}
	}
	if len(cands) == 0 {
		return nil
	}
	if !c.reportAll {
		sharpest := cands[0]
		for _, cand := range cands[1:] {
			if cand.angle < sharpest.angle {
				sharpest = cand
			}
		}
		cands = []spikeCandidate{sharpest}
	}
	out := make([]finding.Finding, 0, len(cands))
	for _, cand := range cands {
		msg := fmt.Sprintf("vertex angle %.2f° is sharper than %.2f°",
			cand.angle*180/math.Pi, c.maxAngle*180/math.Pi)
		out = append(out, newFinding(finding.CodeSpike, ref, msg, g, cand.coord))
	}
	return out
}

func (c *SpikeCheck) lineCandidates(ls *geom.LineString) []spikeCandidate {
	var cands []spikeCandidate
	n := ls.NumCoords()
	for i := 1; i < n-1; i++ {
		if cand, ok := c.candidate(ls.Coord(i-1), ls.Coord(i), ls.Coord(i+1)); ok {
			cands = append(cands, cand)
		}
	}
	return cands
}

// ringCandidates walks a ring circularly: vertex 0 is measured against
// the last distinct vertex and vertex 1.
func (c *SpikeCheck) ringCandidates(ring *geom.LinearRing) []spikeCandidate {
	coords := ring.Coords()
	m := len(coords)
	if m > 1 && sameCoord(coords[0], coords[m-1]) {
		m--
	}
	if m < 3 {
		return nil
	}
	var cands []spikeCandidate
	for i := 0; i < m; i++ {
		prev := coords[(i-1+m)%m]
		next := coords[(i+1)%m]
		if cand, ok := c.candidate(prev, coords[i], next); ok {
			cands = append(cands, cand)
		}
	}
	return cands
}

func (c *SpikeCheck) candidate(prev, v, next geom.Coord) (spikeCandidate, bool) {
	// zero-length edges have no direction to measure against
	if sameCoord(prev, v) || sameCoord(next, v) {
		return spikeCandidate{}, false
	}
	angle := xy.AngleBetween(prev, v, next)
	if !(angle < c.maxAngle) {
		return spikeCandidate{}, false
	}
	return spikeCandidate{coord: geom.Coord{v.X(), v.Y()}, angle: angle}, true
}

func sameCoord(a, b geom.Coord) bool {
	return a.X() == b.X() && a.Y() == b.Y()
}
