package progress

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsaid97/go-spatial-check/pkg/engine"
	"github.com/bsaid97/go-spatial-check/pkg/schedule"
)

// syncBuffer lets the test poll output while the watcher writes it.
type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLineShowsActiveStage(t *testing.T) {
	p := engine.Progress{
		Run: schedule.RunStatus{
			Stages: []schedule.StageStatus{
				{Name: "completeness", Done: true, Fraction: 1},
				{Name: "geometry", Fraction: 0.25},
			},
			Remaining:  90 * time.Second,
			Confidence: 0.6,
		},
		Workers:  4,
		Findings: 12,
	}
	line := Line(p)
	assert.Contains(t, line, "geometry")
	assert.Contains(t, line, "25%")
	assert.Contains(t, line, "1m30s")
	assert.Contains(t, line, "60% sure")
	assert.Contains(t, line, "12 findings")
	assert.Contains(t, line, "4 workers")
}

func TestLineAllStagesDone(t *testing.T) {
	p := engine.Progress{
		Run: schedule.RunStatus{
			Stages: []schedule.StageStatus{{Name: "attributes", Done: true, Fraction: 1}},
		},
		Workers: 2,
	}
	assert.Contains(t, Line(p), "attributes")
}

func TestLineBeforeFirstStage(t *testing.T) {
	assert.Contains(t, Line(engine.Progress{Workers: 3}), "starting")
}

func TestFormatETA(t *testing.T) {
	assert.Equal(t, "0s", formatETA(0))
	assert.Equal(t, "<1s", formatETA(300*time.Millisecond))
	assert.Equal(t, "5s", formatETA(5100*time.Millisecond))
}

func TestWatchPaintsAndClears(t *testing.T) {
	var buf syncBuffer
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		New(&buf).Watch(ctx, 5*time.Millisecond, func() engine.Progress {
			return engine.Progress{Run: schedule.RunStatus{
				Stages: []schedule.StageStatus{{Name: "geometry", Fraction: 0.5}},
			}}
		})
	}()

	require.Eventually(t, func() bool { return buf.Len() > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
	out := buf.String()
	assert.Contains(t, out, "geometry")
	assert.True(t, strings.HasSuffix(out, "\r\033[K"), "line is cleared on exit")
}
