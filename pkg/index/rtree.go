package index

import (
	"github.com/tidwall/rtree"

	"github.com/bsaid97/go-spatial-check/pkg/geometry"
)

// rtreeIndex adapts tidwall's R-tree to the Index contract. It is the
// strategy of choice for skewed datasets where grid cells degenerate.
type rtreeIndex struct {
	tr rtree.RTreeG[*Entry]
}

func newRTreeIndex(entries []*Entry) *rtreeIndex {
	r := &rtreeIndex{}
	for _, e := range entries {
		r.Insert(e)
	}
	return r
}

func corners(env geometry.Envelope) (min, max [2]float64) {
	return [2]float64{env.MinX, env.MinY}, [2]float64{env.MaxX, env.MaxY}
}

func (r *rtreeIndex) Insert(e *Entry) {
	min, max := corners(e.Env)
	r.tr.Insert(min, max, e)
}

func (r *rtreeIndex) Remove(e *Entry) bool {
	before := r.tr.Len()
	min, max := corners(e.Env)
	r.tr.Delete(min, max, e)
	return r.tr.Len() < before
}

func (r *rtreeIndex) Query(env geometry.Envelope) []*Entry {
	var out []*Entry
	min, max := corners(env)
	r.tr.Search(min, max, func(_, _ [2]float64, e *Entry) bool {
		out = append(out, e)
		return true
	})
	return out
}

func (r *rtreeIndex) Len() int { return r.tr.Len() }
