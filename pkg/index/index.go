// Package index provides interchangeable spatial index strategies over
// feature envelopes, plus the envelope-phase scans for duplicate and
// overlap pairs. Every strategy honors the same contract: a query must
// return every indexed entry whose envelope intersects the query
// envelope. False positives are allowed and are settled downstream by
// exact tests; false negatives never are.
package index

import (
	"fmt"

	"github.com/twpayne/go-geom"

	"github.com/bsaid97/go-spatial-check/pkg/geometry"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

// Entry is one indexed feature. Ordinal is the insertion order and must
// be unique within an index; the pair scans use it to decide which
// feature of a pair is the later one.
type Entry struct {
	Ref     source.Ref
	Env     geometry.Envelope
	Geom    geom.T
	Ordinal int
}

// Index is a queryable envelope index.
type Index interface {
	Insert(*Entry)
	// Remove deletes a previously inserted entry, reporting whether it
	// was found.
	Remove(*Entry) bool
	// Query returns the candidate entries whose envelopes intersect env.
	Query(env geometry.Envelope) []*Entry
	Len() int
}

// Strategy selects an index implementation.
type Strategy string

const (
	StrategyGrid     Strategy = "grid"
	StrategyRTree    Strategy = "rtree"
	StrategyQuadtree Strategy = "quadtree"
)

// ParseStrategy validates a strategy name from configuration.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyGrid, StrategyRTree, StrategyQuadtree:
		return Strategy(s), nil
	case "":
		return StrategyGrid, nil
	}
	return "", fmt.Errorf("unknown index strategy %q (want grid, rtree or quadtree)", s)
}

// New builds an index of the given strategy and bulk-loads the entries.
// The entries also tune the structure: the grid derives its cell size
// from them and the quadtree roots itself over their combined extent.
// Later Inserts are accepted by every strategy.
func New(s Strategy, entries []*Entry) (Index, error) {
	switch s {
	case StrategyGrid:
		return newGridIndex(entries), nil
	case StrategyRTree:
		return newRTreeIndex(entries), nil
	case StrategyQuadtree:
		return newQuadtreeIndex(entries), nil
	}
	return nil, fmt.Errorf("unknown index strategy %q", s)
}
