package monitor

import (
	"fmt"

	"go.uber.org/zap"
)

// Keys of the built-in monitors
const (
	KeyCPU     = "cpu"
	KeyMemory  = "mem"
	KeyDisk    = "disk"
	KeyProcess = "process"
)

// RegisterBuiltins registers the cpu, mem and disk monitors, in that order,
// all writing through sink.
func RegisterBuiltins(r *Registry, sink Sink) error {
	builtins := []struct {
		key  string
		calc Calculator
	}{
		{KeyCPU, NewCPUCalculator()},
		{KeyMemory, NewMemoryCalculator()},
		{KeyDisk, NewDiskCalculator()},
	}

	for _, b := range builtins {
		if _, err := r.Register(b.key, b.calc, sink); err != nil {
			return fmt.Errorf("registering %s monitor: %w", b.key, err)
		}
	}
	return nil
}

// RegisterProcessMonitor registers the monitor sampling this process
func RegisterProcessMonitor(r *Registry, sink Sink) error {
	if _, err := r.Register(KeyProcess, NewProcessCalculator(), sink); err != nil {
		return fmt.Errorf("registering %s monitor: %w", KeyProcess, err)
	}
	return nil
}

// NewHostRegistry returns a registry holding the built-in monitors
func NewHostRegistry(logger *zap.Logger, sink Sink, selfMonitor bool) (*Registry, error) {
	r := NewRegistry(logger)
	if err := RegisterBuiltins(r, sink); err != nil {
		return nil, err
	}
	if selfMonitor {
		if err := RegisterProcessMonitor(r, sink); err != nil {
			return nil, err
		}
	}
	return r, nil
}
