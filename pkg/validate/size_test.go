package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

func TestSizeShortLine(t *testing.T) {
	check := NewSizeCheck(DefaultParams())

	got := check.Check(source.Ref{Table: "roads", ID: "1"},
		testLine(geom.Coord{0, 0}, geom.Coord{0.005, 0}))
	require.Len(t, got, 1)
	assert.Equal(t, finding.CodeShortLine, got[0].Code)
	assert.Equal(t, finding.SeverityWarning, got[0].Severity)
	require.NotNil(t, got[0].Location)
	assert.Equal(t, 0.005, got[0].Location.X)

	assert.Empty(t, check.Check(source.Ref{Table: "roads", ID: "2"},
		testLine(geom.Coord{0, 0}, geom.Coord{5, 0})))
}

func TestSizeSmallPolygon(t *testing.T) {
	check := NewSizeCheck(DefaultParams())

	got := check.Check(source.Ref{Table: "parcels", ID: "1"}, testSquare(0, 0, 0.05))
	require.Len(t, got, 1)
	assert.Equal(t, finding.CodeSmallArea, got[0].Code)
	require.NotNil(t, got[0].Location)
	assert.InDelta(t, 0.025, got[0].Location.X, 1e-12)
	assert.InDelta(t, 0.025, got[0].Location.Y, 1e-12)

	assert.Empty(t, check.Check(source.Ref{Table: "parcels", ID: "2"}, testSquare(0, 0, 10)))
}

func TestSizeFlagsEachShortPart(t *testing.T) {
	multi := geom.NewMultiLineString(geom.XY).MustSetCoords([][]geom.Coord{
		{{0, 0}, {0.003, 0}},
		{{10, 10}, {20, 10}},
	})
	check := NewSizeCheck(DefaultParams())

	got := check.Check(source.Ref{Table: "roads", ID: "9"}, multi)
	require.Len(t, got, 1)
	assert.Equal(t, finding.CodeShortLine, got[0].Code)
}

func TestSizeDisabledByZeroMinimums(t *testing.T) {
	check := NewSizeCheck(Params{})
	assert.Empty(t, check.Check(source.Ref{Table: "roads", ID: "1"},
		testLine(geom.Coord{0, 0}, geom.Coord{0.001, 0})))
	assert.Empty(t, check.Check(source.Ref{Table: "parcels", ID: "1"}, testSquare(0, 0, 0.001)))
}
