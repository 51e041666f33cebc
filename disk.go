package monitor

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
)

// DiskFunc returns free and total bytes of the filesystem mounted at path
type DiskFunc func(ctx context.Context, path string) (free, total uint64, err error)

// DiskCalculator reports free and used space at Options.MountPoint.
// A failed query is fatal: the monitor running it halts until restarted.
type DiskCalculator struct {
	usage DiskFunc
}

// NewDiskCalculator queries the filesystem through gopsutil
func NewDiskCalculator() *DiskCalculator {
	return NewDiskCalculatorWithSource(func(ctx context.Context, path string) (uint64, uint64, error) {
		u, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			return 0, 0, err
		}
		return u.Free, u.Total, nil
	})
}

// NewDiskCalculatorWithSource uses usage as the source
func NewDiskCalculatorWithSource(usage DiskFunc) *DiskCalculator {
	return &DiskCalculator{usage: usage}
}

// Defaults implements Calculator
func (c *DiskCalculator) Defaults() Layer {
	return Layer{MountPoint: String("/")}
}

// Usage implements Calculator
func (c *DiskCalculator) Usage(ctx context.Context, opts Options) (Value, error) {
	free, total, err := c.usage(ctx, opts.MountPoint)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, Fatal(fmt.Errorf("disk usage at %s: %w", opts.MountPoint, err))
	}
	if free > total {
		return nil, fmt.Errorf("disk at %s reports %d free of %d bytes", opts.MountPoint, free, total)
	}

	return DiskUsage{
		Free: int64(free / megabyte),
		Used: int64((total - free) / megabyte),
	}, nil
}
