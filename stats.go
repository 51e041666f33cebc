package monitor

import (
	"sync/atomic"
	"time"
)

// Stats holds the tick counters of a monitor
type Stats struct {
	ticks       atomic.Int64
	stored      atomic.Int64
	dropped     atomic.Int64
	usageErrors atomic.Int64
	lastTick    atomic.Int64
}

// StatsSnapshot is a copy of Stats at one point in time
type StatsSnapshot struct {
	Ticks       int64
	Stored      int64
	Dropped     int64
	UsageErrors int64
	LastTick    time.Duration
}

// Snapshot reads every counter
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Ticks:       s.ticks.Load(),
		Stored:      s.stored.Load(),
		Dropped:     s.dropped.Load(),
		UsageErrors: s.usageErrors.Load(),
		LastTick:    time.Duration(s.lastTick.Load()),
	}
}
