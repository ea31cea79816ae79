package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-spatial-check/pkg/geometry"
)

// fakeTester settles pairs on envelope arithmetic alone, which is exact
// for the axis-aligned shapes these tests use.
type fakeTester struct{}

func (fakeTester) Distance(a, b geom.T) (float64, error) {
	ea, eb := geometry.EnvelopeOf(a), geometry.EnvelopeOf(b)
	dx := maxf(0, maxf(ea.MinX-eb.MaxX, eb.MinX-ea.MaxX))
	dy := maxf(0, maxf(ea.MinY-eb.MaxY, eb.MinY-ea.MaxY))
	return geometry.Distance(geom.Coord{0, 0}, geom.Coord{dx, dy}), nil
}

func (fakeTester) Intersection(a, b geom.T) (geom.T, error) {
	ea, eb := geometry.EnvelopeOf(a), geometry.EnvelopeOf(b)
	if !ea.Intersects(eb) {
		return nil, nil
	}
	minX := maxf(ea.MinX, eb.MinX)
	minY := maxf(ea.MinY, eb.MinY)
	maxX := minf(ea.MaxX, eb.MaxX)
	maxY := minf(ea.MaxY, eb.MaxY)
	switch {
	case minX < maxX && minY < maxY:
		return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
			{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
		}}), nil
	case minX < maxX || minY < maxY:
		return geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{
			{minX, minY}, {maxX, maxY},
		}), nil
	}
	return geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{minX, minY}), nil
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func buildIndex(t *testing.T, entries []*Entry) Index {
	t.Helper()
	idx, err := New(StrategyGrid, entries)
	require.NoError(t, err)
	return idx
}

// Three mutually close features must produce exactly two pairs: the
// first probe claims both others and the visited set stops the
// symmetric and transitive re-reports.
func TestFindDuplicatesMutualCluster(t *testing.T) {
	entries := []*Entry{
		pointEntry(0, 0, 0),
		pointEntry(1, 0.004, 0),
		pointEntry(2, 0, 0.004),
		pointEntry(3, 50, 50), // far away
	}
	idx := buildIndex(t, entries)

	pairs, err := FindDuplicates(context.Background(), idx, entries, true, 0.01, fakeTester{})
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	for _, p := range pairs {
		assert.Greater(t, p.Later.Ordinal, p.Earlier.Ordinal, "pair must be attributed to the later feature")
		assert.Equal(t, 0, p.Earlier.Ordinal)
		assert.Less(t, p.Distance, 0.01)
	}
	assert.Equal(t, 1, pairs[0].Later.Ordinal)
	assert.Equal(t, 2, pairs[1].Later.Ordinal)
}

func TestFindDuplicatesSinglePairOnce(t *testing.T) {
	entries := []*Entry{
		pointEntry(0, 10, 10),
		pointEntry(1, 10.002, 10),
	}
	idx := buildIndex(t, entries)

	pairs, err := FindDuplicates(context.Background(), idx, entries, true, 0.01, fakeTester{})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 1, pairs[0].Later.Ordinal)
	assert.Equal(t, 0, pairs[0].Earlier.Ordinal)
}

func TestFindDuplicatesRespectsTolerance(t *testing.T) {
	entries := []*Entry{
		pointEntry(0, 0, 0),
		pointEntry(1, 0.02, 0),
	}
	idx := buildIndex(t, entries)

	pairs, err := FindDuplicates(context.Background(), idx, entries, true, 0.01, fakeTester{})
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestFindDuplicatesCrossTable(t *testing.T) {
	right := []*Entry{pointEntry(0, 5, 5), pointEntry(1, 40, 40)}
	idx := buildIndex(t, right)
	probes := []*Entry{pointEntry(100, 5.001, 5), pointEntry(101, 90, 90)}

	pairs, err := FindDuplicates(context.Background(), idx, probes, false, 0.01, fakeTester{})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 100, pairs[0].Later.Ordinal, "cross-table pair is attributed to the probe")
	assert.Equal(t, 0, pairs[0].Earlier.Ordinal)
}

func TestFindDuplicatesCancelled(t *testing.T) {
	entries := []*Entry{pointEntry(0, 0, 0), pointEntry(1, 0.001, 0)}
	idx := buildIndex(t, entries)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FindDuplicates(ctx, idx, entries, true, 0.01, fakeTester{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindOverlapsPolygons(t *testing.T) {
	entries := []*Entry{
		squareEntry(0, 0, 0, 10),
		squareEntry(1, 5, 0, 10),    // overlaps 0 with area 50
		squareEntry(2, 10, 20, 10),  // disjoint
		squareEntry(3, -10, 0, 10),  // shares only an edge with 0
	}
	idx := buildIndex(t, entries)

	pairs, err := FindOverlaps(context.Background(), idx, entries, true, 0.01, fakeTester{})
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	p := pairs[0]
	assert.Equal(t, 1, p.Later.Ordinal)
	assert.Equal(t, 0, p.Earlier.Ordinal)
	require.NotNil(t, p.Intersection)

	c, ok := geometry.Centroid(p.Intersection)
	require.True(t, ok)
	assert.InDelta(t, 7.5, c.X(), 1e-9)
	assert.InDelta(t, 5, c.Y(), 1e-9)
}

func TestFindOverlapsLines(t *testing.T) {
	entries := []*Entry{
		lineEntry(0, geom.Coord{0, 0}, geom.Coord{10, 0}),
		lineEntry(1, geom.Coord{5, 0}, geom.Coord{15, 0}), // shares x in [5,10]
		lineEntry(2, geom.Coord{10, 0}, geom.Coord{10, 10}),
	}
	idx := buildIndex(t, entries)

	pairs, err := FindOverlaps(context.Background(), idx, entries, true, 0.01, fakeTester{})
	require.NoError(t, err)
	require.Len(t, pairs, 1, "endpoint touching must not count as overlap")
	assert.Equal(t, 1, pairs[0].Later.Ordinal)
	assert.Equal(t, 0, pairs[0].Earlier.Ordinal)
}

func TestFindOverlapsCrossTable(t *testing.T) {
	right := []*Entry{squareEntry(0, 0, 0, 10)}
	idx := buildIndex(t, right)
	probes := []*Entry{squareEntry(50, 5, 5, 10), squareEntry(51, 100, 100, 5)}

	pairs, err := FindOverlaps(context.Background(), idx, probes, false, 0.5, fakeTester{})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 50, pairs[0].Later.Ordinal)
	assert.Equal(t, 0, pairs[0].Earlier.Ordinal)
}
