package validate

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/geometry"
	"github.com/bsaid97/go-spatial-check/pkg/index"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

// LinePart is one line string of a feature, kept with its owner for
// attribution.
type LinePart struct {
	Ref  source.Ref
	Line *geom.LineString
}

// DangleCheck classifies dangling line endpoints. An endpoint with no
// contact within the snap tolerance is matched against the nearest line
// inside the search distance and reported as an overshoot when the
// nearest point coincides with that line's own endpoint, as an
// undershoot otherwise. Endpoints with no line in range stay silent.
type DangleCheck struct {
	searchDist float64
	snapTol    float64
	strategy   index.Strategy
}

func NewDangleCheck(p Params, strategy index.Strategy) *DangleCheck {
	return &DangleCheck{
		searchDist: p.DangleSearchDistance,
		snapTol:    p.DangleSnapTolerance,
		strategy:   strategy,
	}
}

func (c *DangleCheck) Name() string { return "dangle" }

// CheckTable inspects every line part of one table in one pass over a
// freshly built index.
func (c *DangleCheck) CheckTable(ctx context.Context, parts []LinePart) ([]finding.Finding, error) {
	if c.searchDist <= 0 || len(parts) == 0 {
		return nil, nil
	}
	entries := make([]*index.Entry, 0, len(parts))
	for i, part := range parts {
		if part.Line == nil || part.Line.NumCoords() < 2 {
			continue
		}
		entries = append(entries, &index.Entry{
			Ref:     part.Ref,
			Env:     geometry.EnvelopeOf(part.Line),
			Geom:    part.Line,
			Ordinal: i,
		})
	}
	idx, err := index.New(c.strategy, entries)
	if err != nil {
		return nil, err
	}
	var out []finding.Finding
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		line := e.Geom.(*geom.LineString)
		first := line.Coord(0)
		last := line.Coord(line.NumCoords() - 1)
		if geometry.Distance(first, last) <= c.snapTol {
			continue // closed loop, no endpoints
		}
		for _, ep := range []geom.Coord{first, last} {
			if f, ok := c.classify(idx, e, ep); ok {
				out = append(out, f)
			}
		}
	}
	return out, nil
}

// classify resolves one endpoint: connected endpoints produce nothing,
// dangling ones with a neighbour in range produce an undershoot or
// overshoot finding.
func (c *DangleCheck) classify(idx index.Index, self *index.Entry, ep geom.Coord) (finding.Finding, bool) {
	candidates := idx.Query(geometry.EnvelopeOfCoord(ep).Expand(c.searchDist))
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Ordinal < candidates[j].Ordinal
	})

	var (
		nearest     geom.Coord
		nearestDist = math.Inf(1)
		nearestLine *index.Entry
	)
	for _, cand := range candidates {
		if cand.Ordinal == self.Ordinal {
			continue
		}
		line := cand.Geom.(*geom.LineString)
		p, d, ok := geometry.NearestOnLine(line, ep)
		if !ok {
			continue
		}
		if d <= c.snapTol {
			return finding.Finding{}, false // the network is connected here
		}
		if d < nearestDist {
			nearest, nearestDist, nearestLine = p, d, cand
		}
	}
	if nearestLine == nil || nearestDist > c.searchDist {
		return finding.Finding{}, false
	}

	target := nearestLine.Ref
	code := finding.CodeUndershoot
	msg := fmt.Sprintf("endpoint falls short of %s by %.4g", target, nearestDist)
	if c.touchesEndpoint(nearestLine.Geom.(*geom.LineString), nearest) {
		code = finding.CodeOvershoot
		msg = fmt.Sprintf("endpoint extends past %s, gap %.4g", target, nearestDist)
	}
	f := finding.Finding{
		Code:     code,
		Severity: finding.DefaultSeverity(code),
		Ref:      self.Ref,
		Target:   &target,
		Message:  msg,
		Kind:     geometry.KindLine,
		Location: &finding.Location{
			X: (ep.X() + nearest.X()) / 2,
			Y: (ep.Y() + nearest.Y()) / 2,
		},
		Anchor: geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{
			{ep.X(), ep.Y()},
			{nearest.X(), nearest.Y()},
		}),
	}
	return f, true
}

// touchesEndpoint reports whether p coincides with either endpoint of
// the line within the snap tolerance.
func (c *DangleCheck) touchesEndpoint(line *geom.LineString, p geom.Coord) bool {
	n := line.NumCoords()
	if n == 0 {
		return false
	}
	return geometry.Distance(p, line.Coord(0)) <= c.snapTol ||
		geometry.Distance(p, line.Coord(n-1)) <= c.snapTol
}
