// Package schedule sizes parallel work to the machine. A Pool runs
// work units under a worker count that a periodic resource sample
// adjusts between configured bounds, and the trackers estimate
// remaining time per stage from smoothed throughput.
package schedule

import (
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Limits bounds the pool's adaptive sizing.
type Limits struct {
	MinWorkers     int
	MaxWorkers     int
	SampleInterval time.Duration
}

// DefaultLimits sizes the pool to the host.
func DefaultLimits() Limits {
	return Limits{
		MinWorkers:     1,
		MaxWorkers:     runtime.NumCPU(),
		SampleInterval: 2 * time.Second,
	}
}

// Validate rejects bounds the pool cannot run with.
func (l Limits) Validate() error {
	if l.MinWorkers < 1 {
		return fmt.Errorf("minimum worker count %d is below 1", l.MinWorkers)
	}
	if l.MaxWorkers < l.MinWorkers {
		return fmt.Errorf("maximum worker count %d is below the minimum %d",
			l.MaxWorkers, l.MinWorkers)
	}
	if l.SampleInterval <= 0 {
		return fmt.Errorf("sample interval %s is not positive", l.SampleInterval)
	}
	return nil
}

// Usage is one resource pressure sample, both values in percent.
type Usage struct {
	CPUPercent    float64
	MemoryPercent float64
}

// Sampler reads current resource pressure.
type Sampler interface {
	Sample() (Usage, error)
}

// NewSystemSampler reads CPU and memory pressure from the host.
func NewSystemSampler() Sampler { return systemSampler{} }

type systemSampler struct{}

func (systemSampler) Sample() (Usage, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return Usage{}, fmt.Errorf("sampling cpu: %w", err)
	}
	var cpuPct float64
	if len(percents) > 0 {
		cpuPct = percents[0]
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Usage{}, fmt.Errorf("sampling memory: %w", err)
	}
	return Usage{CPUPercent: cpuPct, MemoryPercent: vm.UsedPercent}, nil
}

// Pressure thresholds for retargeting. Memory exhaustion is the
// catastrophic failure, so it cuts the worker count in half at once
// while CPU pressure only steps by one.
const (
	memoryHighWater = 85.0
	cpuHighWater    = 90.0
	cpuLowWater     = 60.0
)

// nextTarget computes the desired worker count from one sample,
// clamped to the limits.
func nextTarget(current int, u Usage, l Limits) int {
	next := current
	switch {
	case u.MemoryPercent >= memoryHighWater:
		next = current / 2
	case u.CPUPercent >= cpuHighWater:
		next = current - 1
	case u.CPUPercent <= cpuLowWater:
		next = current + 1
	}
	if next < l.MinWorkers {
		next = l.MinWorkers
	}
	if next > l.MaxWorkers {
		next = l.MaxWorkers
	}
	return next
}
