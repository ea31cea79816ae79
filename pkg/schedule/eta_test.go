package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageRemainingWithKnownTotal(t *testing.T) {
	clock := time.Unix(1000, 0)
	tr := newStageTracker("geometry", 100, func() time.Time { return clock })

	for i := 0; i < 5; i++ {
		clock = clock.Add(time.Second)
		tr.Add(10)
	}
	s := tr.Snapshot()
	assert.EqualValues(t, 50, s.Processed)
	assert.InDelta(t, 10.0, s.RatePerSec, 0.5)
	assert.InDelta(t, 5.0, s.Remaining.Seconds(), 0.5)
	assert.InDelta(t, 0.5, s.Fraction, 1e-9)
	assert.False(t, s.Done)
}

func TestStageRemainingFractionFallback(t *testing.T) {
	clock := time.Unix(0, 0)
	tr := newStageTracker("relations", 0, func() time.Time { return clock })

	clock = clock.Add(30 * time.Second)
	tr.SetFraction(0.25)

	s := tr.Snapshot()
	assert.InDelta(t, 90.0, s.Remaining.Seconds(), 1e-6)
}

func TestStageSeedFallback(t *testing.T) {
	clock := time.Unix(0, 0)
	tr := newStageTracker("schema", 0, func() time.Time { return clock })

	assert.Equal(t, defaultSeed, tr.Snapshot().Remaining)

	tr.SeedRemaining(10 * time.Second)
	assert.Equal(t, 10*time.Second, tr.Snapshot().Remaining)

	tr.SeedRemaining(0)
	assert.Equal(t, 10*time.Second, tr.Snapshot().Remaining, "zero seed is ignored")
}

func TestStageConfidenceRisesWithSamples(t *testing.T) {
	clock := time.Unix(0, 0)
	tr := newStageTracker("geometry", 0, func() time.Time { return clock })

	clock = clock.Add(time.Second)
	tr.Add(10)
	clock = clock.Add(time.Second)
	tr.Add(10)
	early := tr.Snapshot().Confidence
	require.Greater(t, early, 0.0)

	for i := 0; i < 18; i++ {
		clock = clock.Add(time.Second)
		tr.Add(10)
	}
	late := tr.Snapshot().Confidence
	assert.Greater(t, late, early)
}

func TestStageConfidenceFallsWithNoise(t *testing.T) {
	clock := time.Unix(0, 0)
	steady := newStageTracker("a", 0, func() time.Time { return clock })
	noisy := newStageTracker("b", 0, func() time.Time { return clock })

	for i := 0; i < 20; i++ {
		clock = clock.Add(time.Second)
		steady.Add(10)
		if i%2 == 0 {
			noisy.Add(1)
		} else {
			noisy.Add(19)
		}
	}
	assert.Less(t, noisy.Snapshot().Confidence, steady.Snapshot().Confidence)
}

func TestStageConfidenceSaturatesNearCompletion(t *testing.T) {
	clock := time.Unix(0, 0)
	tr := newStageTracker("geometry", 100, func() time.Time { return clock })

	for i := 0; i < 19; i++ {
		clock = clock.Add(time.Second)
		tr.Add(5)
	}
	s := tr.Snapshot()
	require.InDelta(t, 0.95, s.Fraction, 1e-9)
	assert.Greater(t, s.Confidence, 0.9)
}

func TestStageFinish(t *testing.T) {
	tr := NewStageTracker("completeness", 10)
	tr.Add(3)
	tr.Finish()

	s := tr.Snapshot()
	assert.True(t, s.Done)
	assert.Zero(t, s.Remaining)
	assert.Equal(t, 1.0, s.Confidence)
	assert.Equal(t, 1.0, s.Fraction)
	assert.EqualValues(t, 10, s.Processed)
}

func TestRunTrackerAggregates(t *testing.T) {
	rt := NewRunTracker()
	a := rt.Stage("completeness", 10)
	a.Finish()
	rt.Stage("geometry", 0)

	status := rt.Snapshot()
	require.Len(t, status.Stages, 2)
	assert.True(t, status.Stages[0].Done)
	// the unfinished stage has no signal yet, so the run remaining is
	// exactly its seed
	assert.Equal(t, defaultSeed, status.Remaining)
	assert.InDelta(t, 0.5, status.Confidence, 1e-9)
}

func TestRunTrackerEmpty(t *testing.T) {
	status := NewRunTracker().Snapshot()
	assert.Empty(t, status.Stages)
	assert.Zero(t, status.Remaining)
	assert.Zero(t, status.Confidence)
}
