package engine

import (
	"context"
	"fmt"

	"github.com/bsaid97/go-spatial-check/pkg/config"
	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/geometry"
	"github.com/bsaid97/go-spatial-check/pkg/index"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

// tableIndex is a spatial index built over one table, cached for as
// long as the source generation holds.
type tableIndex struct {
	idx     index.Index
	entries []*index.Entry
	gen     uint64
}

// tableIndex returns the cached index for a table, rebuilding it when
// the source data has changed underneath. Builds are serialized; rules
// sharing a left table wait for one build instead of racing their own.
func (e *Engine) tableIndex(ctx context.Context, table string) (*tableIndex, error) {
	gen := e.src.Generation()
	e.idxMu.Lock()
	defer e.idxMu.Unlock()
	if ti, ok := e.indexes[table]; ok && ti.gen == gen {
		return ti, nil
	}
	entries, err := e.loadEntries(ctx, table, 0)
	if err != nil {
		return nil, err
	}
	idx, err := index.New(e.cfg.Strategy(), entries)
	if err != nil {
		return nil, err
	}
	ti := &tableIndex{idx: idx, entries: entries, gen: gen}
	e.indexes[table] = ti
	e.log.Debug("spatial index built", "table", table,
		"entries", len(entries), "strategy", e.cfg.Strategy())
	return ti, nil
}

// loadEntries streams a table into index entries. Ordinals start at
// base so probe entries from a second table never collide with the
// indexed ones.
func (e *Engine) loadEntries(ctx context.Context, table string, base int) ([]*index.Entry, error) {
	cur, err := e.src.Stream(ctx, table)
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	var entries []*index.Entry
	for cur.Next() {
		feat := cur.Feature()
		if geometry.IsEmpty(feat.Geometry) {
			continue
		}
		entries = append(entries, &index.Entry{
			Ref:     source.Ref{Table: table, ID: feat.ID},
			Env:     geometry.EnvelopeOf(feat.Geometry),
			Geom:    feat.Geometry,
			Ordinal: base + len(entries),
		})
	}
	return entries, cur.Err()
}

// runRelations evaluates every relation rule, one rule per work unit.
func (e *Engine) runRelations(ctx context.Context) []string {
	rules := e.cfg.Relations
	if ctx.Err() != nil || len(rules) == 0 {
		return nil
	}
	if e.exact == nil {
		e.log.Error("relations stage skipped", "error", "relation rules need the exact geometry engine")
		return []string{"relations: relation rules need the exact geometry engine"}
	}
	tr := e.tracker.Stage("relations", int64(len(rules)))
	failures, _ := e.pool.ForEach(ctx, len(rules), func(ctx context.Context, i int) error {
		rule := rules[i]
		if err := e.checkRelation(ctx, rule); err != nil {
			return fmt.Errorf("%s-%s: %w", rule.Left, rule.Right, err)
		}
		tr.Add(1)
		return nil
	})
	if ctx.Err() == nil {
		tr.Finish()
	}
	return stageFailures("relations", failures)
}

func (e *Engine) checkRelation(ctx context.Context, rule config.RelationRule) error {
	left, err := e.tableIndex(ctx, rule.Left)
	if err != nil {
		return err
	}
	selfPair := rule.Left == rule.Right
	probes := left.entries
	if !selfPair {
		probes, err = e.loadEntries(ctx, rule.Right, len(left.entries))
		if err != nil {
			return err
		}
	}
	pass, err := e.exact.NewPass()
	if err != nil {
		return fmt.Errorf("opening exact pass: %w", err)
	}
	defer pass.Close()

	if rule.Duplicates {
		pairs, err := index.FindDuplicates(ctx, left.idx, probes, selfPair, rule.Tolerance, pass)
		for _, p := range pairs {
			e.emitDuplicate(rule, p)
		}
		if err != nil {
			return err
		}
	}
	if rule.Overlaps {
		pairs, err := index.FindOverlaps(ctx, left.idx, probes, selfPair, rule.Tolerance, pass)
		for _, p := range pairs {
			e.emitOverlap(p)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) emitDuplicate(rule config.RelationRule, p index.DuplicatePair) {
	f := newFinding(finding.CodeDuplicate, p.Later.Ref,
		fmt.Sprintf("feature lies within %g of %s", rule.Tolerance, p.Earlier.Ref))
	target := p.Earlier.Ref
	f.Target = &target
	f.Kind = geometry.KindOf(p.Later.Geom)
	if c, ok := geometry.RepresentativeCoord(p.Later.Geom); ok {
		f.Location = &finding.Location{X: c.X(), Y: c.Y()}
	}
	e.emit(f)
}

func (e *Engine) emitOverlap(p index.OverlapPair) {
	f := newFinding(finding.CodeOverlap, p.Later.Ref,
		fmt.Sprintf("interior overlaps %s", p.Earlier.Ref))
	target := p.Earlier.Ref
	f.Target = &target
	f.Anchor = p.Intersection
	e.emit(f)
}
