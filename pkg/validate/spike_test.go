package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

func TestSpikeAtRingSeam(t *testing.T) {
	// the sharp vertex is the ring's first/last coordinate, visible only
	// with wrap-around neighbours
	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{0, 0}, {20, 0.1}, {20, -0.1}, {0, 0},
	}})
	check := NewSpikeCheck(DefaultParams())

	got := check.Check(source.Ref{Table: "parcels", ID: "1"}, poly)
	require.Len(t, got, 1)
	f := got[0]
	assert.Equal(t, finding.CodeSpike, f.Code)
	assert.Equal(t, finding.SeverityWarning, f.Severity)
	require.NotNil(t, f.Location)
	assert.Equal(t, 0.0, f.Location.X)
	assert.Equal(t, 0.0, f.Location.Y)
}

func TestSpikeLineInterior(t *testing.T) {
	line := testLine(geom.Coord{0, 0}, geom.Coord{10, 0}, geom.Coord{0, 0.1})
	check := NewSpikeCheck(DefaultParams())

	got := check.Check(source.Ref{Table: "roads", ID: "7"}, line)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Location)
	assert.Equal(t, 10.0, got[0].Location.X)
	assert.Equal(t, 0.0, got[0].Location.Y)
	assert.Contains(t, got[0].Message, "sharper")
}

func TestSpikeReportAllVsSharpest(t *testing.T) {
	zigzag := testLine(
		geom.Coord{0, 0}, geom.Coord{10, 0.01}, geom.Coord{0, 0.02}, geom.Coord{10, 0.03},
	)

	p := DefaultParams()
	got := NewSpikeCheck(p).Check(source.Ref{Table: "roads", ID: "1"}, zigzag)
	assert.Len(t, got, 1)

	p.SpikeReportAll = true
	got = NewSpikeCheck(p).Check(source.Ref{Table: "roads", ID: "1"}, zigzag)
	assert.Len(t, got, 2)
}

func TestSpikeCleanShapes(t *testing.T) {
	check := NewSpikeCheck(DefaultParams())
	assert.Empty(t, check.Check(source.Ref{Table: "t", ID: "1"}, testSquare(0, 0, 10)))
	assert.Empty(t, check.Check(source.Ref{Table: "t", ID: "2"},
		testLine(geom.Coord{0, 0}, geom.Coord{5, 5})))
	assert.Empty(t, check.Check(source.Ref{Table: "t", ID: "3"}, nil))
}

func TestSpikeSkipsZeroLengthEdges(t *testing.T) {
	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{0, 0}, {10, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0},
	}})
	check := NewSpikeCheck(DefaultParams())
	assert.Empty(t, check.Check(source.Ref{Table: "t", ID: "1"}, poly))
}
