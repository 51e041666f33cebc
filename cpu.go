package monitor

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
)

// ErrNoCPUTime is returned when the counters give no elapsed time to divide by
var ErrNoCPUTime = errors.New("no cpu time elapsed")

// CPUTimesFunc returns the per-core time counters of the host
type CPUTimesFunc func(ctx context.Context) ([]cpu.TimesStat, error)

// CPUCalculator computes CPU utilization as an integer percentage.
//
// With Options.UpdateInterval set, two counter snapshots are taken
// UpdateInterval apart and the usage of that window is reported. Otherwise
// the figure is derived from the counters accumulated since boot.
type CPUCalculator struct {
	times CPUTimesFunc
}

// NewCPUCalculator reads the host counters through gopsutil
func NewCPUCalculator() *CPUCalculator {
	return NewCPUCalculatorWithSource(func(ctx context.Context) ([]cpu.TimesStat, error) {
		return cpu.TimesWithContext(ctx, true)
	})
}

// NewCPUCalculatorWithSource uses times as the counter source
func NewCPUCalculatorWithSource(times CPUTimesFunc) *CPUCalculator {
	return &CPUCalculator{times: times}
}

// Defaults implements Calculator
func (c *CPUCalculator) Defaults() Layer {
	return Layer{UpdateInterval: Duration(time.Second)}
}

// Usage implements Calculator
func (c *CPUCalculator) Usage(ctx context.Context, opts Options) (Value, error) {
	first, err := c.sample(ctx)
	if err != nil {
		return nil, err
	}

	if opts.UpdateInterval <= 0 {
		return cpuPercent(first.idle, first.total)
	}

	timer := time.NewTimer(opts.UpdateInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	second, err := c.sample(ctx)
	if err != nil {
		return nil, err
	}
	return cpuPercent(second.idle-first.idle, second.total-first.total)
}

type cpuTotals struct {
	idle  float64
	total float64
}

func (c *CPUCalculator) sample(ctx context.Context) (cpuTotals, error) {
	stats, err := c.times(ctx)
	if err != nil {
		return cpuTotals{}, err
	}
	return sumCPUTimes(stats), nil
}

// sumCPUTimes aggregates user, nice, sys, idle and irq across all cores
func sumCPUTimes(stats []cpu.TimesStat) cpuTotals {
	var user, nice, sys, idle, irq float64
	for _, s := range stats {
		user += s.User
		nice += s.Nice
		sys += s.System
		idle += s.Idle
		irq += s.Irq
	}
	return cpuTotals{
		idle:  idle,
		total: user + nice + sys + idle + irq,
	}
}

func cpuPercent(idle, total float64) (Value, error) {
	if total <= 0 {
		return nil, ErrNoCPUTime
	}
	return Percent(math.Floor((1 - idle/total) * 100)), nil
}
