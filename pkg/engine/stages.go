package engine

import (
	"context"
	"fmt"

	"github.com/bsaid97/go-spatial-check/pkg/config"
	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/geometry"
	"github.com/bsaid97/go-spatial-check/pkg/schedule"
	"github.com/bsaid97/go-spatial-check/pkg/source"
	"github.com/bsaid97/go-spatial-check/pkg/validate"
)

// runCompleteness streams every table once, flagging features without a
// geometry and tables without features, and records per-table feature
// counts for the later stages' progress totals.
func (e *Engine) runCompleteness(ctx context.Context, tables []string) []string {
	if ctx.Err() != nil || len(tables) == 0 {
		return nil
	}
	tr := e.tracker.Stage("completeness", int64(len(tables)))
	failures, _ := e.pool.ForEach(ctx, len(tables), func(ctx context.Context, i int) error {
		if err := e.scanCompleteness(ctx, tables[i]); err != nil {
			return fmt.Errorf("%s: %w", tables[i], err)
		}
		tr.Add(1)
		return nil
	})
	if ctx.Err() == nil {
		tr.Finish()
	}
	return stageFailures("completeness", failures)
}

func (e *Engine) scanCompleteness(ctx context.Context, table string) error {
	cur, err := e.src.Stream(ctx, table)
	if err != nil {
		return err
	}
	defer cur.Close()
	var count int64
	for cur.Next() {
		feat := cur.Feature()
		count++
		if geometry.IsEmpty(feat.Geometry) {
			e.emit(newFinding(finding.CodeMissingGeometry,
				source.Ref{Table: table, ID: feat.ID}, "feature has no geometry"))
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}
	if count == 0 {
		e.emit(newFinding(finding.CodeEmptyTable,
			source.Ref{Table: table}, "table has no features"))
	}
	e.features.Add(count)
	e.setCount(table, count)
	return nil
}

// runSchema compares each declared table schema against the columns the
// source actually serves. Schema rules against a source without
// attribute data fail the stage rather than silently passing.
func (e *Engine) runSchema(ctx context.Context) []string {
	rules := e.cfg.Schema
	if ctx.Err() != nil || len(rules) == 0 {
		return nil
	}
	attrs, ok := e.src.(source.AttributeReader)
	if !ok {
		e.log.Error("schema stage skipped", "error", source.ErrNoAttributes)
		return []string{"schema: " + source.ErrNoAttributes.Error()}
	}
	tr := e.tracker.Stage("schema", int64(len(rules)))
	failures, _ := e.pool.ForEach(ctx, len(rules), func(ctx context.Context, i int) error {
		if err := e.checkSchema(attrs, rules[i]); err != nil {
			return fmt.Errorf("%s: %w", rules[i].Table, err)
		}
		tr.Add(1)
		return nil
	})
	if ctx.Err() == nil {
		tr.Finish()
	}
	return stageFailures("schema", failures)
}

func (e *Engine) checkSchema(attrs source.AttributeReader, rule config.TableSchema) error {
	fields, err := attrs.Fields(rule.Table)
	if err != nil {
		return err
	}
	byName := make(map[string]source.FieldInfo, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	for _, want := range rule.Fields {
		got, present := byName[want.Name]
		if !present {
			if want.Optional {
				continue
			}
			e.emit(newFinding(finding.CodeFieldMissing, source.Ref{Table: rule.Table},
				fmt.Sprintf("field %s is missing", want.Name)))
			continue
		}
		if want.Type != "" && string(got.Type) != want.Type {
			e.emit(newFinding(finding.CodeFieldType, source.Ref{Table: rule.Table},
				fmt.Sprintf("field %s has type %s, want %s", want.Name, got.Type, want.Type)))
		}
	}
	return nil
}

// runGeometry runs the per-feature checks over every table, one table
// per work unit, plus the per-table dangle scan. Bad thresholds or a
// missing exact engine fail the whole stage up front.
func (e *Engine) runGeometry(ctx context.Context, tables []string) []string {
	ck := e.cfg.Checks
	anyCheck := ck.Validity || ck.Simplicity || ck.Spikes || ck.Slivers ||
		ck.Size || ck.Structure || ck.Dangles
	if ctx.Err() != nil || len(tables) == 0 || !anyCheck {
		return nil
	}
	params := e.cfg.Params()
	if err := params.Validate(); err != nil {
		e.log.Error("geometry stage skipped", "error", err)
		return []string{fmt.Sprintf("geometry: %v", err)}
	}
	if (ck.Validity || ck.Simplicity) && e.exact == nil {
		e.log.Error("geometry stage skipped", "error", "validity checks need the exact geometry engine")
		return []string{"geometry: validity checks need the exact geometry engine"}
	}
	tr := e.tracker.Stage("geometry", e.totalFeatures())
	failures, _ := e.pool.ForEach(ctx, len(tables), func(ctx context.Context, i int) error {
		if err := e.checkTable(ctx, tables[i], params, tr); err != nil {
			return fmt.Errorf("%s: %w", tables[i], err)
		}
		return nil
	})
	if ctx.Err() == nil {
		tr.Finish()
	}
	return stageFailures("geometry", failures)
}

func (e *Engine) checkTable(ctx context.Context, table string, params validate.Params, tr *schedule.StageTracker) error {
	ck := e.cfg.Checks
	var checkers []validate.Checker
	if ck.Validity || ck.Simplicity {
		pass, err := e.exact.NewPass()
		if err != nil {
			return fmt.Errorf("opening exact pass: %w", err)
		}
		defer pass.Close()
		checkers = append(checkers, validate.NewValidityCheck(pass, ck.Validity, ck.Simplicity, e.log))
	}
	if ck.Structure {
		checkers = append(checkers, validate.NewStructureCheck(params))
	}
	if ck.Spikes {
		checkers = append(checkers, validate.NewSpikeCheck(params))
	}
	if ck.Slivers {
		checkers = append(checkers, validate.NewSliverCheck(params))
	}
	if ck.Size {
		checkers = append(checkers, validate.NewSizeCheck(params))
	}
	var dangle *validate.DangleCheck
	var parts []validate.LinePart
	if ck.Dangles {
		dangle = validate.NewDangleCheck(params, e.cfg.Strategy())
	}

	cur, err := e.src.Stream(ctx, table)
	if err != nil {
		return err
	}
	defer cur.Close()
	for cur.Next() {
		feat := cur.Feature()
		tr.Add(1)
		if geometry.IsEmpty(feat.Geometry) {
			continue
		}
		ref := source.Ref{Table: table, ID: feat.ID}
		for _, c := range checkers {
			for _, f := range c.Check(ref, feat.Geometry) {
				e.emit(f)
			}
		}
		if dangle != nil {
			for _, ls := range geometry.Lines(feat.Geometry) {
				parts = append(parts, validate.LinePart{Ref: ref, Line: ls})
			}
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}
	if dangle != nil {
		fs, err := dangle.CheckTable(ctx, parts)
		for _, f := range fs {
			e.emit(f)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
