package index

import (
	"math"

	"github.com/bsaid97/go-spatial-check/pkg/geometry"
)

// maxCellsPerEntry bounds how many cells one entry may occupy before it
// is pulled out of the grid entirely.
const maxCellsPerEntry = 64

type cellKey struct{ x, y int }

// gridIndex buckets entries into square cells keyed by the floored cell
// coordinates of their envelopes. Entries that would blanket more than
// maxCellsPerEntry cells go to a flat side list that every query scans
// directly, so a handful of huge features cannot blow up the cell count
// and still can never be missed.
type gridIndex struct {
	cellSize float64
	cells    map[cellKey][]*Entry
	large    []*Entry
	count    int
}

func newGridIndex(entries []*Entry) *gridIndex {
	g := &gridIndex{
		cellSize: chooseCellSize(entries),
		cells:    make(map[cellKey][]*Entry),
	}
	for _, e := range entries {
		g.Insert(e)
	}
	return g
}

// chooseCellSize tunes the grid so a typical query touches only a few
// cells with a few entries each. The base size is twice the mean feature
// extent, raised to the expected feature spacing when features are sparse
// and clamped so a cell never exceeds the dataset span.
func chooseCellSize(entries []*Entry) float64 {
	if len(entries) == 0 {
		return 1
	}
	domain := entries[0].Env
	var sumExtent float64
	for _, e := range entries {
		domain = domain.Union(e.Env)
		sumExtent += math.Max(e.Env.Width(), e.Env.Height())
	}
	span := math.Max(domain.Width(), domain.Height())
	if span <= 0 {
		return 1
	}
	meanExtent := sumExtent / float64(len(entries))
	spacing := 0.0
	if area := domain.Width() * domain.Height(); area > 0 {
		spacing = math.Sqrt(area / float64(len(entries)))
	}
	cell := math.Max(meanExtent*2, spacing)
	if cell <= 0 {
		cell = span / 16
	}
	if floor := span / 4096; cell < floor {
		cell = floor
	}
	if cell > span {
		cell = span
	}
	return cell
}

func (g *gridIndex) cellRange(env geometry.Envelope) (minX, minY, maxX, maxY int) {
	minX = int(math.Floor(env.MinX / g.cellSize))
	minY = int(math.Floor(env.MinY / g.cellSize))
	maxX = int(math.Floor(env.MaxX / g.cellSize))
	maxY = int(math.Floor(env.MaxY / g.cellSize))
	return
}

func (g *gridIndex) Insert(e *Entry) {
	g.count++
	minX, minY, maxX, maxY := g.cellRange(e.Env)
	nx, ny := maxX-minX+1, maxY-minY+1
	if nx > maxCellsPerEntry || ny > maxCellsPerEntry || nx*ny > maxCellsPerEntry {
		g.large = append(g.large, e)
		return
	}
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			k := cellKey{x, y}
			g.cells[k] = append(g.cells[k], e)
		}
	}
}

func (g *gridIndex) Remove(e *Entry) bool {
	for i, le := range g.large {
		if le == e {
			g.large = append(g.large[:i], g.large[i+1:]...)
			g.count--
			return true
		}
	}
	found := false
	minX, minY, maxX, maxY := g.cellRange(e.Env)
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			k := cellKey{x, y}
			bucket := g.cells[k]
			for i, be := range bucket {
				if be == e {
					g.cells[k] = append(bucket[:i], bucket[i+1:]...)
					if len(g.cells[k]) == 0 {
						delete(g.cells, k)
					}
					found = true
					break
				}
			}
		}
	}
	if found {
		g.count--
	}
	return found
}

func (g *gridIndex) Query(env geometry.Envelope) []*Entry {
	var out []*Entry
	seen := make(map[int]struct{})
	minX, minY, maxX, maxY := g.cellRange(env)
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for _, e := range g.cells[cellKey{x, y}] {
				if _, dup := seen[e.Ordinal]; dup {
					continue
				}
				if env.Intersects(e.Env) {
					seen[e.Ordinal] = struct{}{}
					out = append(out, e)
				}
			}
		}
	}
	for _, e := range g.large {
		if env.Intersects(e.Env) {
			if _, dup := seen[e.Ordinal]; !dup {
				out = append(out, e)
			}
		}
	}
	return out
}

func (g *gridIndex) Len() int { return g.count }
