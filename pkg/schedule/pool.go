package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// UnitError records one failed work unit. Unit failures never abort
// the surrounding run.
type UnitError struct {
	Unit int
	Err  error
}

// Pool runs work units under an adaptive worker count. The desired
// concurrency persists across calls, so a pool that has backed off
// under pressure stays backed off into the next stage.
type Pool struct {
	limits  Limits
	sampler Sampler
	log     hclog.Logger

	mu      sync.Mutex
	target  int
	workers int
}

// NewPool builds a pool. sampler may be nil, in which case the host
// sampler is used. The initial target sits halfway up the allowed
// range and adapts from there.
func NewPool(limits Limits, sampler Sampler, log hclog.Logger) (*Pool, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if sampler == nil {
		sampler = NewSystemSampler()
	}
	if log == nil {
		log = hclog.NewNullLogger()
	}
	target := (limits.MaxWorkers + 1) / 2
	if target < limits.MinWorkers {
		target = limits.MinWorkers
	}
	return &Pool{
		limits:  limits,
		sampler: sampler,
		log:     log.Named("pool"),
		target:  target,
	}, nil
}

// Workers reports the current worker count.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}

// ForEach runs fn for every unit in [0, n) with adaptive concurrency.
// A unit error is recorded and the remaining units keep running; the
// returned error is non-nil only when ctx ends the run early.
func (p *Pool) ForEach(ctx context.Context, n int, fn func(ctx context.Context, unit int) error) ([]UnitError, error) {
	if n <= 0 {
		return nil, ctx.Err()
	}

	jobs := make(chan int)
	// shrink tokens; workers prefer one over the next job
	stop := make(chan struct{}, p.limits.MaxWorkers)

	var (
		wg       sync.WaitGroup
		failMu   sync.Mutex
		failures []UnitError
	)
	worker := func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case unit, ok := <-jobs:
				if !ok {
					return
				}
				if err := fn(ctx, unit); err != nil {
					failMu.Lock()
					failures = append(failures, UnitError{Unit: unit, Err: err})
					failMu.Unlock()
					p.log.Warn("work unit failed", "unit", unit, "error", err)
				}
			}
		}
	}

	p.mu.Lock()
	start := p.target
	if start > n {
		start = n
	}
	if start < 1 {
		start = 1
	}
	p.workers = start
	p.mu.Unlock()

	wg.Add(start)
	for i := 0; i < start; i++ {
		go worker()
	}

	done := make(chan struct{})
	go p.retargetLoop(ctx, done, &wg, worker, stop)

feed:
	for i := 0; i < n; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(done)

	p.mu.Lock()
	p.workers = 0
	p.mu.Unlock()

	return failures, ctx.Err()
}

func (p *Pool) retargetLoop(ctx context.Context, done <-chan struct{}, wg *sync.WaitGroup, worker func(), stop chan<- struct{}) {
	ticker := time.NewTicker(p.limits.SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			usage, err := p.sampler.Sample()
			if err != nil {
				p.log.Warn("resource sample failed", "error", err)
				continue
			}
			p.applySample(usage, wg, worker, stop)
		}
	}
}

func (p *Pool) applySample(u Usage, wg *sync.WaitGroup, worker func(), stop chan<- struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.workers
	if current == 0 {
		return
	}
	next := nextTarget(current, u, p.limits)
	if next == current {
		return
	}
	if next > current {
		wg.Add(next - current)
		for i := current; i < next; i++ {
			go worker()
		}
		p.log.Debug("scaling up", "workers", next,
			"cpu", u.CPUPercent, "memory", u.MemoryPercent)
	} else {
		for i := next; i < current; i++ {
			stop <- struct{}{}
		}
		p.log.Debug("scaling down", "workers", next,
			"cpu", u.CPUPercent, "memory", u.MemoryPercent)
	}
	p.workers = next
	p.target = next
}
