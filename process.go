package monitor

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessCalculator samples the sampler process itself: resident memory,
// Go heap in use and goroutine count.
type ProcessCalculator struct {
	pid int32
}

// NewProcessCalculator reports on the current process
func NewProcessCalculator() *ProcessCalculator {
	return &ProcessCalculator{pid: int32(os.Getpid())}
}

// Defaults implements Calculator
func (c *ProcessCalculator) Defaults() Layer {
	return Layer{Interval: Duration(10 * time.Second)}
}

// Usage implements Calculator
func (c *ProcessCalculator) Usage(ctx context.Context, _ Options) (Value, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	usage := ProcessUsage{
		HeapInUse:  float64(ms.HeapInuse) / megabyte,
		Goroutines: runtime.NumGoroutine(),
	}

	rss, err := processRSS(ctx, c.pid)
	if err != nil {
		return nil, err
	}
	usage.RSS = float64(rss) / megabyte
	return usage, nil
}

// processRSS returns the resident set size of pid in bytes
func processRSS(ctx context.Context, pid int32) (uint64, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return 0, err
	}
	info, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}
