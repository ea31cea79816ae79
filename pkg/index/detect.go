package index

import (
	"context"
	"math"
	"sort"

	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-spatial-check/pkg/geometry"
)

// ExactTester runs the precise pair tests that settle envelope-phase
// candidates. The production implementation wraps the native geometry
// engine; tests substitute pure-Go fakes.
type ExactTester interface {
	Distance(a, b geom.T) (float64, error)
	Intersection(a, b geom.T) (geom.T, error)
}

// DuplicatePair links two features closer than the duplicate tolerance.
// Later is the feature the pair is attributed to; Earlier is its
// counterpart.
type DuplicatePair struct {
	Later    *Entry
	Earlier  *Entry
	Distance float64
}

// OverlapPair links two features whose interiors genuinely overlap.
type OverlapPair struct {
	Later        *Entry
	Earlier      *Entry
	Intersection geom.T
}

// FindDuplicates scans the probes against the index for features closer
// than tolerance. Each probe queries its envelope expanded by the
// tolerance and exact-tests the unvisited candidates; a hit marks the
// candidate visited and visited features are skipped as probes, so a
// cluster of n mutual duplicates yields n-1 pairs instead of a full
// pairwise blowup. With selfPair set the probes are the indexed entries
// themselves and each pair is attributed to the higher ordinal; without
// it the probes come from a different table and pairs are attributed to
// the probe.
func FindDuplicates(ctx context.Context, idx Index, probes []*Entry, selfPair bool, tolerance float64, tester ExactTester) ([]DuplicatePair, error) {
	visited := make(map[int]bool, len(probes))
	var pairs []DuplicatePair
	for _, e := range probes {
		if err := ctx.Err(); err != nil {
			return pairs, err
		}
		if visited[e.Ordinal] || geometry.IsEmpty(e.Geom) {
			continue
		}
		candidates := idx.Query(e.Env.Expand(tolerance))
		sortByOrdinal(candidates)
		for _, c := range candidates {
			if c.Ordinal == e.Ordinal || visited[c.Ordinal] || geometry.IsEmpty(c.Geom) {
				continue
			}
			d, err := tester.Distance(e.Geom, c.Geom)
			if err != nil {
				return pairs, err
			}
			if d >= tolerance {
				continue
			}
			later, earlier := e, c
			if selfPair && c.Ordinal > e.Ordinal {
				later, earlier = c, e
			}
			pairs = append(pairs, DuplicatePair{Later: later, Earlier: earlier, Distance: d})
			visited[c.Ordinal] = true
		}
		visited[e.Ordinal] = true
	}
	return pairs, nil
}

// FindOverlaps scans the probes against the index for pairs with a
// substantial shared interior: the exact intersection must reach the
// pair's own dimension (area above tolerance squared for polygon pairs,
// length above tolerance for line pairs), so features that merely touch
// along an edge or at a point are not overlaps. With selfPair set each
// unordered pair is tested once, from its higher-ordinal side.
func FindOverlaps(ctx context.Context, idx Index, probes []*Entry, selfPair bool, tolerance float64, tester ExactTester) ([]OverlapPair, error) {
	var pairs []OverlapPair
	for _, e := range probes {
		if err := ctx.Err(); err != nil {
			return pairs, err
		}
		if geometry.IsEmpty(e.Geom) {
			continue
		}
		candidates := idx.Query(e.Env)
		sortByOrdinal(candidates)
		for _, c := range candidates {
			if selfPair && c.Ordinal >= e.Ordinal {
				continue
			}
			if c.Ordinal == e.Ordinal || geometry.IsEmpty(c.Geom) {
				continue
			}
			inter, err := tester.Intersection(e.Geom, c.Geom)
			if err != nil {
				return pairs, err
			}
			if inter == nil || !substantialOverlap(e, c, inter, tolerance) {
				continue
			}
			pairs = append(pairs, OverlapPair{Later: e, Earlier: c, Intersection: inter})
		}
	}
	return pairs, nil
}

func sortByOrdinal(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Ordinal < entries[j].Ordinal })
}

func substantialOverlap(a, b *Entry, inter geom.T, tolerance float64) bool {
	ka, kb := geometry.KindOf(a.Geom), geometry.KindOf(b.Geom)
	switch {
	case ka == geometry.KindPolygon && kb == geometry.KindPolygon:
		return intersectionArea(inter) > tolerance*tolerance
	case ka == geometry.KindLine && kb == geometry.KindLine:
		return intersectionLength(inter) > tolerance
	}
	return !geometry.IsEmpty(inter)
}

func intersectionArea(g geom.T) float64 {
	var total float64
	for _, p := range geometry.Polygons(g) {
		total += math.Abs(p.Area())
	}
	return total
}

func intersectionLength(g geom.T) float64 {
	var total float64
	for _, l := range geometry.Lines(g) {
		total += l.Length()
	}
	return total
}
