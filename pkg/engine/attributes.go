package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/bsaid97/go-spatial-check/pkg/config"
	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/source"
)

// runAttributes evaluates every attribute reference rule, one rule per
// work unit. Broken references are located afterwards through the
// feature's own geometry.
func (e *Engine) runAttributes(ctx context.Context) []string {
	rules := e.cfg.Attributes
	if ctx.Err() != nil || len(rules) == 0 {
		return nil
	}
	attrs, ok := e.src.(source.AttributeReader)
	if !ok {
		e.log.Error("attributes stage skipped", "error", source.ErrNoAttributes)
		return []string{"attributes: " + source.ErrNoAttributes.Error()}
	}
	tr := e.tracker.Stage("attributes", int64(len(rules)))
	failures, _ := e.pool.ForEach(ctx, len(rules), func(ctx context.Context, i int) error {
		rule := rules[i]
		if err := e.checkReferences(ctx, attrs, rule); err != nil {
			return fmt.Errorf("%s.%s: %w", rule.Table, rule.Field, err)
		}
		tr.Add(1)
		return nil
	})
	if ctx.Err() == nil {
		tr.Finish()
	}
	return stageFailures("attributes", failures)
}

func (e *Engine) checkReferences(ctx context.Context, attrs source.AttributeReader, rule config.AttributeRule) error {
	valid, err := e.referenceValues(ctx, attrs, rule.References)
	if err != nil {
		return fmt.Errorf("loading %s: %w", targetName(rule.References), err)
	}
	cur, err := attrs.StreamAttributes(ctx, rule.Table)
	if err != nil {
		return err
	}
	defer cur.Close()
	for cur.Next() {
		id, row := cur.Row()
		v := strings.TrimSpace(row[rule.Field])
		// Blank values are absent references, not broken ones.
		if v == "" {
			continue
		}
		if _, ok := valid[v]; ok {
			continue
		}
		e.emit(newFinding(finding.CodeBrokenReference, source.Ref{Table: rule.Table, ID: id},
			fmt.Sprintf("field %s value %q has no match in %s", rule.Field, v, targetName(rule.References))))
	}
	return cur.Err()
}

// referenceValues collects the valid values of the referenced side. An
// empty field name means the target table's feature identifiers.
func (e *Engine) referenceValues(ctx context.Context, attrs source.AttributeReader, t config.AttributeTarget) (map[string]struct{}, error) {
	valid := make(map[string]struct{})
	if t.Field == "" {
		cur, err := e.src.Stream(ctx, t.Table)
		if err != nil {
			return nil, err
		}
		defer cur.Close()
		for cur.Next() {
			valid[cur.Feature().ID] = struct{}{}
		}
		return valid, cur.Err()
	}
	cur, err := attrs.StreamAttributes(ctx, t.Table)
	if err != nil {
		return nil, err
	}
	defer cur.Close()
	for cur.Next() {
		_, row := cur.Row()
		if v := strings.TrimSpace(row[t.Field]); v != "" {
			valid[v] = struct{}{}
		}
	}
	return valid, cur.Err()
}

func targetName(t config.AttributeTarget) string {
	if t.Field == "" {
		return t.Table + " identifiers"
	}
	return t.Table + "." + t.Field
}
