package schedule

import (
	"math"
	"sync"
	"time"
)

const (
	// defaultSeed is the remaining-time guess before any signal exists.
	defaultSeed = 30 * time.Second
	// rateWindow is how many instantaneous rate samples feed the
	// confidence estimate.
	rateWindow = 16
	// minSampleGap throttles rate updates so bursts of tiny increments
	// do not produce garbage instantaneous rates.
	minSampleGap = 200 * time.Millisecond
)

// StageStatus is a point-in-time view of one stage.
type StageStatus struct {
	Name       string
	Total      int64
	Processed  int64
	Fraction   float64
	RatePerSec float64
	Remaining  time.Duration
	Confidence float64
	Done       bool
}

// StageTracker estimates remaining time for one stage. The throughput
// rate is smoothed with an exponentially-weighted moving average whose
// weight shifts from heavy smoothing early to light smoothing near
// completion.
type StageTracker struct {
	mu        sync.Mutex
	name      string
	total     int64
	processed int64
	fraction  float64
	started   time.Time
	lastTick  time.Time
	lastCount int64
	rate      float64
	fracRate  float64
	samples   int
	recent    []float64
	seed      time.Duration
	done      bool
	now       func() time.Time
}

// NewStageTracker starts tracking a stage. total may be zero when the
// unit count is unknown up front.
func NewStageTracker(name string, total int64) *StageTracker {
	return newStageTracker(name, total, time.Now)
}

func newStageTracker(name string, total int64, now func() time.Time) *StageTracker {
	t := now()
	return &StageTracker{
		name:     name,
		total:    total,
		started:  t,
		lastTick: t,
		seed:     defaultSeed,
		now:      now,
	}
}

// SeedRemaining replaces the fallback estimate used before any
// throughput signal exists, typically with a historical duration.
func (t *StageTracker) SeedRemaining(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d > 0 {
		t.seed = d
	}
}

// Add records n completed units.
func (t *StageTracker) Add(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed += n
	if t.total > 0 {
		t.fraction = float64(t.processed) / float64(t.total)
	}

	now := t.now()
	gap := now.Sub(t.lastTick)
	if gap < minSampleGap {
		return
	}
	inst := float64(t.processed-t.lastCount) / gap.Seconds()
	instFrac := 0.0
	if t.total > 0 {
		instFrac = inst / float64(t.total)
	}
	alpha := t.alpha()
	if t.samples == 0 {
		t.rate = inst
		t.fracRate = instFrac
	} else {
		t.rate = alpha*inst + (1-alpha)*t.rate
		t.fracRate = alpha*instFrac + (1-alpha)*t.fracRate
	}
	t.samples++
	t.recent = append(t.recent, inst)
	if len(t.recent) > rateWindow {
		t.recent = t.recent[1:]
	}
	t.lastTick = now
	t.lastCount = t.processed
}

// SetFraction reports progress for stages whose unit count is unknown.
func (t *StageTracker) SetFraction(f float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.total == 0 && f >= 0 && f <= 1 {
		t.fraction = f
	}
}

// Finish marks the stage complete.
func (t *StageTracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.fraction = 1
	if t.total > 0 {
		t.processed = t.total
	}
}

// Snapshot returns the current estimate.
func (t *StageTracker) Snapshot() StageStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return StageStatus{
		Name:       t.name,
		Total:      t.total,
		Processed:  t.processed,
		Fraction:   t.fraction,
		RatePerSec: t.rate,
		Remaining:  t.remaining(),
		Confidence: t.confidence(),
		Done:       t.done,
	}
}

// remaining favours the counted estimate, then the fraction estimate,
// then the seed. Callers hold t.mu.
func (t *StageTracker) remaining() time.Duration {
	if t.done {
		return 0
	}
	if t.total > 0 && t.rate > 0 {
		left := float64(t.total-t.processed) / t.rate
		if left < 0 {
			left = 0
		}
		return time.Duration(left * float64(time.Second))
	}
	if t.fraction > 0 {
		elapsed := t.now().Sub(t.started)
		est := time.Duration(float64(elapsed)/t.fraction) - elapsed
		if est < 0 {
			est = 0
		}
		return est
	}
	return t.seed
}

// alpha grows with progress: early samples are smoothed heavily, late
// ones dominate. Callers hold t.mu.
func (t *StageTracker) alpha() float64 {
	return 0.1 + 0.4*t.fraction
}

// confidence rises with the sample count, falls with the coefficient
// of variation of recent rates, and saturates near completion. Callers
// hold t.mu.
func (t *StageTracker) confidence() float64 {
	if t.done {
		return 1
	}
	if t.samples == 0 {
		return 0
	}
	conf := float64(t.samples) / (float64(t.samples) + 5)
	if cv := variation(t.recent); cv > 0 {
		conf /= 1 + cv
	}
	late := math.Pow(t.fraction, 4)
	return conf + (1-conf)*late
}

// variation is the coefficient of variation of the samples.
func variation(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	var mean float64
	for _, s := range samples {
		mean += s
	}
	mean /= float64(len(samples))
	if mean <= 0 {
		return 0
	}
	var sq float64
	for _, s := range samples {
		d := s - mean
		sq += d * d
	}
	return math.Sqrt(sq/float64(len(samples))) / mean
}

// RunStatus aggregates every stage of a run.
type RunStatus struct {
	Stages     []StageStatus
	Remaining  time.Duration
	Confidence float64
}

// RunTracker owns the per-stage trackers of one run.
type RunTracker struct {
	mu     sync.Mutex
	stages []*StageTracker
}

func NewRunTracker() *RunTracker { return &RunTracker{} }

// Stage registers and returns a tracker for a new stage.
func (r *RunTracker) Stage(name string, total int64) *StageTracker {
	t := NewStageTracker(name, total)
	r.mu.Lock()
	r.stages = append(r.stages, t)
	r.mu.Unlock()
	return t
}

// Snapshot sums the incomplete stages' remaining time and averages the
// per-stage confidence.
func (r *RunTracker) Snapshot() RunStatus {
	r.mu.Lock()
	stages := make([]*StageTracker, len(r.stages))
	copy(stages, r.stages)
	r.mu.Unlock()

	status := RunStatus{Stages: make([]StageStatus, 0, len(stages))}
	var confSum float64
	for _, t := range stages {
		s := t.Snapshot()
		status.Stages = append(status.Stages, s)
		if !s.Done {
			status.Remaining += s.Remaining
		}
		confSum += s.Confidence
	}
	if len(stages) > 0 {
		status.Confidence = confSum / float64(len(stages))
	}
	return status
}
