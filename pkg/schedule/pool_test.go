package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSampler struct {
	mu    sync.Mutex
	usage Usage
	err   error
}

func (f *fakeSampler) Sample() (Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usage, f.err
}

func (f *fakeSampler) set(u Usage) {
	f.mu.Lock()
	f.usage = u
	f.mu.Unlock()
}

func quietLimits() Limits {
	return Limits{MinWorkers: 1, MaxWorkers: 4, SampleInterval: time.Hour}
}

func TestForEachRunsAllUnits(t *testing.T) {
	pool, err := NewPool(quietLimits(), &fakeSampler{}, nil)
	require.NoError(t, err)

	const n = 100
	hits := make([]int32, n)
	failures, err := pool.ForEach(context.Background(), n, func(_ context.Context, unit int) error {
		atomic.AddInt32(&hits[unit], 1)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, failures)
	for i, h := range hits {
		assert.EqualValues(t, 1, h, "unit %d", i)
	}
}

func TestForEachCollectsUnitErrors(t *testing.T) {
	pool, err := NewPool(quietLimits(), &fakeSampler{}, nil)
	require.NoError(t, err)

	var processed atomic.Int32
	boom := errors.New("bad table")
	failures, err := pool.ForEach(context.Background(), 100, func(_ context.Context, unit int) error {
		processed.Add(1)
		if unit%10 == 0 {
			return boom
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, failures, 10)
	for _, f := range failures {
		assert.Zero(t, f.Unit%10)
		assert.ErrorIs(t, f.Err, boom)
	}
	assert.EqualValues(t, 100, processed.Load(), "failed units never stop the rest")
}

func TestForEachCancelled(t *testing.T) {
	pool, err := NewPool(quietLimits(), &fakeSampler{}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var processed atomic.Int32
	_, err = pool.ForEach(ctx, 1000, func(_ context.Context, unit int) error {
		if unit == 5 {
			cancel()
		}
		processed.Add(1)
		time.Sleep(time.Millisecond)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, processed.Load(), int32(1000))
}

func TestForEachEmpty(t *testing.T) {
	pool, err := NewPool(quietLimits(), &fakeSampler{}, nil)
	require.NoError(t, err)
	failures, err := pool.ForEach(context.Background(), 0, func(context.Context, int) error {
		t.Fatal("no units to run")
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestPoolShrinksUnderMemoryPressure(t *testing.T) {
	sampler := &fakeSampler{}
	sampler.set(Usage{CPUPercent: 50, MemoryPercent: 95})
	pool, err := NewPool(Limits{
		MinWorkers:     1,
		MaxWorkers:     8,
		SampleInterval: 20 * time.Millisecond,
	}, sampler, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = pool.ForEach(ctx, 1<<20, func(context.Context, int) error {
			time.Sleep(time.Millisecond)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return pool.Workers() == 1 },
		3*time.Second, 10*time.Millisecond, "memory pressure must halve workers down to the minimum")
	cancel()
	<-done
}

func TestPoolGrowsWhenIdle(t *testing.T) {
	sampler := &fakeSampler{}
	sampler.set(Usage{CPUPercent: 10, MemoryPercent: 20})
	pool, err := NewPool(Limits{
		MinWorkers:     1,
		MaxWorkers:     4,
		SampleInterval: 20 * time.Millisecond,
	}, sampler, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = pool.ForEach(ctx, 1<<20, func(context.Context, int) error {
			time.Sleep(time.Millisecond)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return pool.Workers() == 4 },
		3*time.Second, 10*time.Millisecond, "idle CPU must grow workers to the maximum")
	cancel()
	<-done
}

func TestNextTarget(t *testing.T) {
	limits := Limits{MinWorkers: 1, MaxWorkers: 8}
	tests := []struct {
		name    string
		current int
		usage   Usage
		want    int
	}{
		{"memory pressure halves", 8, Usage{CPUPercent: 50, MemoryPercent: 90}, 4},
		{"cpu pressure steps down", 4, Usage{CPUPercent: 95, MemoryPercent: 40}, 3},
		{"idle steps up", 4, Usage{CPUPercent: 20, MemoryPercent: 40}, 5},
		{"steady stays", 4, Usage{CPUPercent: 75, MemoryPercent: 40}, 4},
		{"clamped at max", 8, Usage{CPUPercent: 20, MemoryPercent: 40}, 8},
		{"clamped at min", 1, Usage{CPUPercent: 50, MemoryPercent: 99}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextTarget(tt.current, tt.usage, limits))
		})
	}

	floor := Limits{MinWorkers: 6, MaxWorkers: 8}
	assert.Equal(t, 6, nextTarget(8, Usage{MemoryPercent: 95}, floor))
}

func TestLimitsValidate(t *testing.T) {
	assert.NoError(t, DefaultLimits().Validate())
	assert.Error(t, Limits{MinWorkers: 0, MaxWorkers: 4, SampleInterval: time.Second}.Validate())
	assert.Error(t, Limits{MinWorkers: 4, MaxWorkers: 2, SampleInterval: time.Second}.Validate())
	assert.Error(t, Limits{MinWorkers: 1, MaxWorkers: 4}.Validate())

	_, err := NewPool(Limits{}, nil, nil)
	assert.Error(t, err)
}

func TestSystemSampler(t *testing.T) {
	u, err := NewSystemSampler().Sample()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, u.CPUPercent, 0.0)
	assert.LessOrEqual(t, u.CPUPercent, 100.0)
	assert.GreaterOrEqual(t, u.MemoryPercent, 0.0)
	assert.LessOrEqual(t, u.MemoryPercent, 100.0)
}
