// Package engine orchestrates a run: it walks the configured tables
// through the completeness, schema, geometry, relation and attribute
// stages, resolves every finding to a position where one can be found,
// and reports how the run went. Stages share an adaptive worker pool;
// a failing work unit is recorded and the rest of the run continues.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/bsaid97/go-spatial-check/pkg/config"
	"github.com/bsaid97/go-spatial-check/pkg/finding"
	"github.com/bsaid97/go-spatial-check/pkg/index"
	"github.com/bsaid97/go-spatial-check/pkg/resolve"
	"github.com/bsaid97/go-spatial-check/pkg/schedule"
	"github.com/bsaid97/go-spatial-check/pkg/source"
	"github.com/bsaid97/go-spatial-check/pkg/validate"
)

// ExactPass is the exact-geometry capability serving one work unit.
// Closing the pass releases every native handle it created, so handles
// never outlive the unit that made them.
type ExactPass interface {
	index.ExactTester
	validate.Diagnoser
	Close()
}

// ExactProvider opens a fresh pass per work unit. Implementations wrap
// the native geometry engine; tests substitute pure-Go fakes.
type ExactProvider interface {
	NewPass() (ExactPass, error)
}

// Options wires an Engine. Source and Sink are required. Exact may be
// nil when neither validity checks nor relation rules are configured.
type Options struct {
	Source source.Source
	Sink   finding.Sink
	Config config.Config
	Exact  ExactProvider
	Logger hclog.Logger
	// Pool overrides the worker pool built from the runtime config.
	Pool *schedule.Pool
}

// RunSummary reports one completed (or cancelled) run.
type RunSummary struct {
	RunID       string
	StartedAt   time.Time
	Duration    time.Duration
	Tables      int
	Features    int64
	Findings    int64
	Located     int64
	Unlocated   int64
	FailedUnits []string
	Stages      []schedule.StageStatus
}

// Progress is a point-in-time view of a running engine.
type Progress struct {
	Run      schedule.RunStatus
	Workers  int
	Findings int64
}

// Engine drives one run over one dataset. Build a fresh Engine per run.
type Engine struct {
	src      source.Source
	sink     finding.Sink
	cfg      config.Config
	exact    ExactProvider
	pool     *schedule.Pool
	resolver *resolve.Resolver
	tracker  *schedule.RunTracker
	log      hclog.Logger

	located   atomic.Int64
	unlocated atomic.Int64
	emitted   atomic.Int64
	features  atomic.Int64

	countMu sync.Mutex
	counts  map[string]int64

	idxMu   sync.Mutex
	indexes map[string]*tableIndex
}

func New(o Options) (*Engine, error) {
	if o.Source == nil {
		return nil, errors.New("engine: source is required")
	}
	if o.Sink == nil {
		return nil, errors.New("engine: sink is required")
	}
	log := o.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}
	log = log.Named("engine")
	pool := o.Pool
	if pool == nil {
		var err error
		pool, err = schedule.NewPool(o.Config.Runtime.Limits(), nil, log)
		if err != nil {
			return nil, err
		}
	}
	return &Engine{
		src:      o.Source,
		sink:     o.Sink,
		cfg:      o.Config,
		exact:    o.Exact,
		pool:     pool,
		resolver: resolve.New(o.Source, log),
		tracker:  schedule.NewRunTracker(),
		log:      log,
		counts:   make(map[string]int64),
		indexes:  make(map[string]*tableIndex),
	}, nil
}

// Run executes the stages in order and always returns a summary, even
// when cancelled mid-run. The returned error is the context's, if any;
// failed work units are in the summary, not the error.
func (e *Engine) Run(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	id := uuid.NewString()
	e.log.Info("run starting", "run", id, "dataset", e.cfg.Dataset.Path)

	tables, err := e.selectTables()
	if err != nil {
		return RunSummary{RunID: id, StartedAt: start}, fmt.Errorf("listing tables: %w", err)
	}
	if len(tables) == 0 {
		e.log.Warn("no tables selected", "dataset", e.cfg.Dataset.Path)
	}

	var failed []string
	failed = append(failed, e.runCompleteness(ctx, tables)...)
	failed = append(failed, e.runSchema(ctx)...)
	failed = append(failed, e.runGeometry(ctx, tables)...)
	failed = append(failed, e.runRelations(ctx)...)
	failed = append(failed, e.runAttributes(ctx)...)

	sum := RunSummary{
		RunID:       id,
		StartedAt:   start,
		Duration:    time.Since(start),
		Tables:      len(tables),
		Features:    e.features.Load(),
		Findings:    e.emitted.Load(),
		Located:     e.located.Load(),
		Unlocated:   e.unlocated.Load(),
		FailedUnits: failed,
		Stages:      e.tracker.Snapshot().Stages,
	}
	e.log.Info("run complete", "run", id,
		"findings", sum.Findings, "located", sum.Located, "unlocated", sum.Unlocated,
		"failed_units", len(failed), "duration", sum.Duration)
	return sum, ctx.Err()
}

// Progress reports stage completion and the current worker count.
func (e *Engine) Progress() Progress {
	return Progress{
		Run:      e.tracker.Snapshot(),
		Workers:  e.pool.Workers(),
		Findings: e.emitted.Load(),
	}
}

func (e *Engine) selectTables() ([]string, error) {
	all, err := e.src.ListTables()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, t := range all {
		if e.cfg.Dataset.Selects(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// emit resolves a finding's position and hands it to the sink.
func (e *Engine) emit(f finding.Finding) {
	f = e.resolver.Resolve(f)
	if f.Located() {
		e.located.Add(1)
	} else {
		e.unlocated.Add(1)
	}
	e.emitted.Add(1)
	if err := e.sink.Append(f); err != nil {
		e.log.Error("appending finding", "code", f.Code, "feature", f.Ref, "error", err)
	}
}

func newFinding(code finding.Code, ref source.Ref, msg string) finding.Finding {
	return finding.Finding{
		Code:     code,
		Severity: finding.DefaultSeverity(code),
		Ref:      ref,
		Message:  msg,
	}
}

func (e *Engine) setCount(table string, n int64) {
	e.countMu.Lock()
	e.counts[table] = n
	e.countMu.Unlock()
}

func (e *Engine) totalFeatures() int64 {
	e.countMu.Lock()
	defer e.countMu.Unlock()
	var total int64
	for _, n := range e.counts {
		total += n
	}
	return total
}

func stageFailures(stage string, failures []schedule.UnitError) []string {
	if len(failures) == 0 {
		return nil
	}
	out := make([]string, 0, len(failures))
	for _, f := range failures {
		out = append(out, fmt.Sprintf("%s: %v", stage, f.Err))
	}
	return out
}
