// Package progress renders a live status line for a running engine.
// Rendering stays out of the core: the engine exposes snapshots and
// this package turns them into terminal output.
package progress

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tj/go-spin"

	"github.com/bsaid97/go-spatial-check/pkg/engine"
	"github.com/bsaid97/go-spatial-check/pkg/schedule"
)

// Renderer repaints one status line in place.
type Renderer struct {
	out io.Writer
	sp  *spin.Spinner
}

func New(out io.Writer) *Renderer {
	return &Renderer{out: out, sp: spin.New()}
}

// Watch repaints the status line every interval until the context ends,
// then clears the line.
func (r *Renderer) Watch(ctx context.Context, interval time.Duration, snap func() engine.Progress) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprint(r.out, "\r\033[K")
			return
		case <-ticker.C:
			fmt.Fprintf(r.out, "\r\033[K%s %s", r.sp.Next(), Line(snap()))
		}
	}
}

// Line formats a snapshot: the stage currently running, its completion,
// the estimated time remaining with its confidence, and the pool size.
func Line(p engine.Progress) string {
	st, ok := activeStage(p.Run.Stages)
	if !ok {
		return fmt.Sprintf("starting | %d workers", p.Workers)
	}
	return fmt.Sprintf("%s %3.0f%% | eta %s (%.0f%% sure) | %d findings | %d workers",
		st.Name, st.Fraction*100, formatETA(p.Run.Remaining),
		p.Run.Confidence*100, p.Findings, p.Workers)
}

// activeStage picks the first unfinished stage, falling back to the
// last one when everything is done.
func activeStage(stages []schedule.StageStatus) (schedule.StageStatus, bool) {
	for _, s := range stages {
		if !s.Done {
			return s, true
		}
	}
	if n := len(stages); n > 0 {
		return stages[n-1], true
	}
	return schedule.StageStatus{}, false
}

func formatETA(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return "<1s"
	}
	return d.Round(time.Second).String()
}
