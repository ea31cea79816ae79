package index

import (
	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"

	"github.com/bsaid97/go-spatial-check/pkg/geometry"
)

const (
	quadNodeCapacity = 8
	quadMaxDepth     = 12
)

// quadtreeIndex is a region quadtree over r2 rectangles. An entry lives
// at the deepest node whose quadrant fully contains its envelope;
// entries straddling a split line stay at the parent node, and entries
// outside the root extent stay at the root, so queries can never miss
// them.
type quadtreeIndex struct {
	root *quadNode
	size int
}

type quadNode struct {
	rect     r2.Rect
	depth    int
	entries  []*Entry
	children *[4]*quadNode
}

func rectOf(env geometry.Envelope) r2.Rect {
	return r2.Rect{
		X: r1.Interval{Lo: env.MinX, Hi: env.MaxX},
		Y: r1.Interval{Lo: env.MinY, Hi: env.MaxY},
	}
}

func rectsIntersect(a, b r2.Rect) bool {
	return a.X.Intersects(b.X) && a.Y.Intersects(b.Y)
}

func rectContains(outer, inner r2.Rect) bool {
	return outer.X.ContainsInterval(inner.X) && outer.Y.ContainsInterval(inner.Y)
}

func newQuadtreeIndex(entries []*Entry) *quadtreeIndex {
	root := r2.Rect{X: r1.Interval{Lo: 0, Hi: 1}, Y: r1.Interval{Lo: 0, Hi: 1}}
	if len(entries) > 0 {
		domain := entries[0].Env
		for _, e := range entries[1:] {
			domain = domain.Union(e.Env)
		}
		if domain.Valid() {
			root = rectOf(domain)
		}
	}
	q := &quadtreeIndex{root: &quadNode{rect: root}}
	for _, e := range entries {
		q.Insert(e)
	}
	return q
}

func (q *quadtreeIndex) Insert(e *Entry) {
	q.root.insert(e, rectOf(e.Env))
	q.size++
}

func (n *quadNode) insert(e *Entry, r r2.Rect) {
	if n.children == nil && len(n.entries) >= quadNodeCapacity && n.depth < quadMaxDepth {
		n.split()
	}
	if n.children != nil {
		for _, child := range n.children {
			if rectContains(child.rect, r) {
				child.insert(e, r)
				return
			}
		}
	}
	n.entries = append(n.entries, e)
}

func (n *quadNode) split() {
	cx := n.rect.X.Center()
	cy := n.rect.Y.Center()
	quads := [4]r2.Rect{
		{X: r1.Interval{Lo: n.rect.X.Lo, Hi: cx}, Y: r1.Interval{Lo: n.rect.Y.Lo, Hi: cy}},
		{X: r1.Interval{Lo: cx, Hi: n.rect.X.Hi}, Y: r1.Interval{Lo: n.rect.Y.Lo, Hi: cy}},
		{X: r1.Interval{Lo: n.rect.X.Lo, Hi: cx}, Y: r1.Interval{Lo: cy, Hi: n.rect.Y.Hi}},
		{X: r1.Interval{Lo: cx, Hi: n.rect.X.Hi}, Y: r1.Interval{Lo: cy, Hi: n.rect.Y.Hi}},
	}
	children := &[4]*quadNode{}
	for i, r := range quads {
		children[i] = &quadNode{rect: r, depth: n.depth + 1}
	}
	n.children = children

	kept := n.entries[:0]
	for _, e := range n.entries {
		r := rectOf(e.Env)
		moved := false
		for _, child := range n.children {
			if rectContains(child.rect, r) {
				child.insert(e, r)
				moved = true
				break
			}
		}
		if !moved {
			kept = append(kept, e)
		}
	}
	n.entries = kept
}

func (q *quadtreeIndex) Remove(e *Entry) bool {
	if q.root.remove(e, rectOf(e.Env)) {
		q.size--
		return true
	}
	return false
}

func (n *quadNode) remove(e *Entry, r r2.Rect) bool {
	for i, ne := range n.entries {
		if ne == e {
			n.entries = append(n.entries[:i], n.entries[i+1:]...)
			return true
		}
	}
	if n.children != nil {
		for _, child := range n.children {
			if rectContains(child.rect, r) {
				return child.remove(e, r)
			}
		}
	}
	return false
}

func (q *quadtreeIndex) Query(env geometry.Envelope) []*Entry {
	var out []*Entry
	q.root.query(env, rectOf(env), &out)
	return out
}

func (n *quadNode) query(env geometry.Envelope, r r2.Rect, out *[]*Entry) {
	for _, e := range n.entries {
		if env.Intersects(e.Env) {
			*out = append(*out, e)
		}
	}
	if n.children == nil {
		return
	}
	for _, child := range n.children {
		if rectsIntersect(child.rect, r) {
			child.query(env, r, out)
		}
	}
}

func (q *quadtreeIndex) Len() int { return q.size }
