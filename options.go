package monitor

import (
	"fmt"
	"time"
)

// DefaultInterval is the tick period applied to every monitor unless a
// metric type or an instance override says otherwise.
const DefaultInterval = time.Second

// Options is the merged configuration a monitor runs with
type Options struct {
	// Interval is the tick period
	Interval time.Duration
	// Collection is the destination the samples are appended to
	Collection string

	// UpdateInterval is the CPU delta window. Zero means usage is computed
	// from the counters accumulated since boot.
	UpdateInterval time.Duration
	// PercentageOutput selects the memory value shape
	PercentageOutput bool
	// MountPoint is the path the disk calculator queries
	MountPoint string
}

// Validate checks the options a scheduler cannot run without
func (o Options) Validate() error {
	if o.Interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %s", o.Interval)
	}
	if o.Collection == "" {
		return fmt.Errorf("collection cannot be empty")
	}
	return nil
}

// Layer is a partial set of options. Nil fields are left to lower
// precedence layers.
type Layer struct {
	Interval         *time.Duration
	Collection       *string
	UpdateInterval   *time.Duration
	PercentageOutput *bool
	MountPoint       *string
}

// globalDefaults is the lowest precedence layer shared by all monitors
func globalDefaults(key string) Options {
	return Options{
		Interval:         DefaultInterval,
		Collection:       key,
		PercentageOutput: true,
		MountPoint:       "/",
	}
}

// apply overlays the non-nil fields of l on top of o
func (l Layer) apply(o Options) Options {
	if l.Interval != nil {
		o.Interval = *l.Interval
	}
	if l.Collection != nil {
		o.Collection = *l.Collection
	}
	if l.UpdateInterval != nil {
		o.UpdateInterval = *l.UpdateInterval
	}
	if l.PercentageOutput != nil {
		o.PercentageOutput = *l.PercentageOutput
	}
	if l.MountPoint != nil {
		o.MountPoint = *l.MountPoint
	}
	return o
}

// Merge returns a layer where fields set in next win over fields set in l
func (l Layer) Merge(next Layer) Layer {
	if next.Interval != nil {
		l.Interval = next.Interval
	}
	if next.Collection != nil {
		l.Collection = next.Collection
	}
	if next.UpdateInterval != nil {
		l.UpdateInterval = next.UpdateInterval
	}
	if next.PercentageOutput != nil {
		l.PercentageOutput = next.PercentageOutput
	}
	if next.MountPoint != nil {
		l.MountPoint = next.MountPoint
	}
	return l
}

// mergeOptions builds the effective options of a monitor:
// global defaults, then metric-type defaults, then instance overrides.
func mergeOptions(key string, typeDefaults, overrides Layer) Options {
	return overrides.apply(typeDefaults.apply(globalDefaults(key)))
}

// Helpers for building layers in code

// Duration returns a pointer to d
func Duration(d time.Duration) *time.Duration { return &d }

// String returns a pointer to s
func String(s string) *string { return &s }

// Bool returns a pointer to b
func Bool(b bool) *bool { return &b }
