package monitor

import (
	"context"
	"errors"
	"math"

	"github.com/shirou/gopsutil/v4/mem"
)

// MemoryFunc returns free and total physical memory in bytes
type MemoryFunc func(ctx context.Context) (free, total uint64, err error)

// MemoryCalculator reports memory usage either as a used percentage or as
// free and total megabytes, depending on Options.PercentageOutput.
type MemoryCalculator struct {
	memory MemoryFunc
}

// NewMemoryCalculator reads available and total memory through gopsutil
func NewMemoryCalculator() *MemoryCalculator {
	return NewMemoryCalculatorWithSource(func(ctx context.Context) (uint64, uint64, error) {
		v, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return 0, 0, err
		}
		return v.Available, v.Total, nil
	})
}

// NewMemoryCalculatorWithSource uses memory as the source
func NewMemoryCalculatorWithSource(memory MemoryFunc) *MemoryCalculator {
	return &MemoryCalculator{memory: memory}
}

// Defaults implements Calculator
func (c *MemoryCalculator) Defaults() Layer {
	return Layer{PercentageOutput: Bool(true)}
}

// Usage implements Calculator
func (c *MemoryCalculator) Usage(ctx context.Context, opts Options) (Value, error) {
	free, total, err := c.memory(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, errors.New("total memory reported as zero")
	}

	if opts.PercentageOutput {
		return Percent(100 - int(math.Floor(float64(free)/float64(total)*100))), nil
	}
	return MemoryUsage{
		FreeMem:  float64(free) / megabyte,
		TotalMem: float64(total) / megabyte,
	}, nil
}
