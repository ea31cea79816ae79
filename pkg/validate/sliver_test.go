package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

func rect(minX, minY, w, h float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{minX, minY},
		{minX + w, minY},
		{minX + w, minY + h},
		{minX, minY + h},
		{minX, minY},
	}})
}

func sliverParams() Params {
	p := DefaultParams()
	p.SliverMaxArea = 2
	p.SliverMaxCompactness = 0.1
	p.SliverMinElongation = 10
	return p
}

func TestSliverNeedle(t *testing.T) {
	needle := rect(0, 0, 100, 0.01)
	check := NewSliverCheck(sliverParams())

	got := check.Check(source.Ref{Table: "parcels", ID: "3"}, needle)
	require.Len(t, got, 1)
	f := got[0]
	assert.Equal(t, finding.CodeSliver, f.Code)
	assert.Equal(t, finding.SeverityWarning, f.Severity)
	require.NotNil(t, f.Location)
	// located at the exterior ring's midpoint vertex
	assert.Equal(t, 100.0, f.Location.X)
	assert.InDelta(t, 0.01, f.Location.Y, 1e-12)
}

func TestSliverNeverFlagsLargeShapes(t *testing.T) {
	// low compactness alone must not be enough: this shape is thin but
	// far above the area threshold
	long := rect(0, 0, 10000, 1)
	check := NewSliverCheck(sliverParams())
	assert.Empty(t, check.Check(source.Ref{Table: "parcels", ID: "8"}, long))
}

func TestSliverIgnoresCompactShapes(t *testing.T) {
	check := NewSliverCheck(sliverParams())
	assert.Empty(t, check.Check(source.Ref{Table: "parcels", ID: "2"}, rect(0, 0, 1, 1)))
}

func TestSliverPerPart(t *testing.T) {
	multi := geom.NewMultiPolygon(geom.XY).MustSetCoords([][][]geom.Coord{
		{{{0, 0}, {100, 0}, {100, 0.01}, {0, 0.01}, {0, 0}}},
		{{{200, 0}, {201, 0}, {201, 1}, {200, 1}, {200, 0}}},
	})
	check := NewSliverCheck(sliverParams())

	got := check.Check(source.Ref{Table: "parcels", ID: "5"}, multi)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Location)
	assert.Equal(t, 100.0, got[0].Location.X)
}

func TestSliverSkipsDegenerateParts(t *testing.T) {
	flat := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{0, 0}, {10, 0}, {0, 0},
	}})
	check := NewSliverCheck(sliverParams())
	assert.Empty(t, check.Check(source.Ref{Table: "parcels", ID: "4"}, flat))
}
