package monitor

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrDuplicateKey is returned when a key is registered twice
var ErrDuplicateKey = errors.New("monitor key already registered")

// Registry owns the monitors of the process, in registration order
type Registry struct {
	logger   *zap.Logger
	mutex    sync.RWMutex
	byKey    map[string]*Monitor
	monitors []*Monitor
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger: logger,
		byKey:  make(map[string]*Monitor),
	}
}

// Construct creates a monitor whose calculator and sink always fail until
// they are replaced. Its collection defaults to key.
func (r *Registry) Construct(key string) (*Monitor, error) {
	if key == "" {
		return nil, fmt.Errorf("monitor key cannot be empty")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.byKey[key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}

	m := newMonitor(key, r.logger)
	r.byKey[key] = m
	r.monitors = append(r.monitors, m)

	r.logger.Debug("registered monitor", zap.String("monitor", key))
	return m, nil
}

// Register constructs a monitor and sets its calculator and sink
func (r *Registry) Register(key string, calc Calculator, sink Sink) (*Monitor, error) {
	m, err := r.Construct(key)
	if err != nil {
		return nil, err
	}
	m.SetCalculator(calc)
	m.SetSink(sink)
	return m, nil
}

// Get looks a monitor up by key
func (r *Registry) Get(key string) (*Monitor, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	m, ok := r.byKey[key]
	return m, ok
}

// Monitors returns the monitors in registration order
func (r *Registry) Monitors() []*Monitor {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return append([]*Monitor(nil), r.monitors...)
}

// Keys returns the monitor keys in registration order
func (r *Registry) Keys() []string {
	monitors := r.Monitors()
	keys := make([]string, 0, len(monitors))
	for _, m := range monitors {
		keys = append(keys, m.Key())
	}
	return keys
}

// StartAll starts every monitor in registration order. A monitor that fails
// to start does not prevent the others from starting.
func (r *Registry) StartAll() error {
	var err error
	for _, m := range r.Monitors() {
		err = multierr.Append(err, m.Start())
	}
	if err != nil {
		r.logger.Error("some monitors failed to start", zap.Error(err))
		return err
	}
	r.logger.Info("monitors started", zap.Strings("monitors", r.Keys()))
	return nil
}

// StopAll stops every monitor
func (r *Registry) StopAll() {
	for _, m := range r.Monitors() {
		m.Stop()
	}
	r.logger.Info("monitors stopped")
}

// Status returns the state of every monitor by key
func (r *Registry) Status() map[string]Status {
	status := make(map[string]Status)
	for _, m := range r.Monitors() {
		status[m.Key()] = m.Status()
	}
	return status
}

// Stats returns the counters of every monitor by key
func (r *Registry) Stats() map[string]StatsSnapshot {
	stats := make(map[string]StatsSnapshot)
	for _, m := range r.Monitors() {
		stats[m.Key()] = m.Stats()
	}
	return stats
}
