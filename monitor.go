package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrUsageUndefined is returned by a monitor that has no calculator yet
	ErrUsageUndefined = errors.New("monitor usage is not defined")
	// ErrPersistUndefined is returned by a monitor that has no sink yet
	ErrPersistUndefined = errors.New("monitor persistence is not defined")
)

// Calculator produces a metric value for a monitor
type Calculator interface {
	// Defaults returns the metric-type option layer
	Defaults() Layer
	// Usage computes one value. It may block until ctx is done.
	Usage(ctx context.Context, opts Options) (Value, error)
}

// Sink durably records a produced value
type Sink interface {
	Store(ctx context.Context, collection string, value Value) error
}

// FatalError marks a calculator failure that must halt its monitor
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err so that the monitor running the calculator stops
func Fatal(err error) error {
	return &FatalError{Err: err}
}

// State is the lifecycle state of a monitor
type State int

const (
	Idle State = iota
	Running
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is a point-in-time view of a monitor. Reason is set when State is Failed.
type Status struct {
	State  State
	Reason error
}

// Monitor is one independently scheduled metric stream
type Monitor struct {
	key    string
	logger *zap.Logger
	stats  *Stats

	mutex        sync.Mutex
	calc         Calculator
	sink         Sink
	typeDefaults Layer
	overrides    Layer
	state        State
	reason       error

	// scheduling handle, non-nil only while running
	cancel context.CancelFunc
	done   chan struct{}
}

func newMonitor(key string, logger *zap.Logger) *Monitor {
	return &Monitor{
		key:    key,
		logger: logger.With(zap.String("monitor", key)),
		stats:  &Stats{},
		calc:   undefinedCalculator{key: key},
		sink:   undefinedSink{key: key},
	}
}

// Key returns the monitor identifier
func (m *Monitor) Key() string {
	return m.key
}

// SetCalculator replaces the calculator and adopts its metric-type defaults
func (m *Monitor) SetCalculator(calc Calculator) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.calc = calc
	m.typeDefaults = calc.Defaults()
}

// SetSink replaces the sink
func (m *Monitor) SetSink(sink Sink) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sink = sink
}

// Configure merges instance overrides; fields set in l win over earlier calls.
// A running monitor picks them up on its next tick.
func (m *Monitor) Configure(l Layer) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.overrides = m.overrides.Merge(l)
}

// Options returns the merged configuration
func (m *Monitor) Options() Options {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return mergeOptions(m.key, m.typeDefaults, m.overrides)
}

// Status returns the lifecycle state
func (m *Monitor) Status() Status {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return Status{State: m.state, Reason: m.reason}
}

// Stats returns the tick counters
func (m *Monitor) Stats() StatsSnapshot {
	return m.stats.Snapshot()
}

// Start arms the periodic timer. Starting a running monitor is a no-op;
// starting a stopped or failed monitor resumes it.
func (m *Monitor) Start() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.cancel != nil {
		return nil
	}

	opts := mergeOptions(m.key, m.typeDefaults, m.overrides)
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("monitor %s: %w", m.key, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.state = Running
	m.reason = nil

	go m.run(ctx, done, opts.Interval)

	m.logger.Debug("monitor started",
		zap.Duration("interval", opts.Interval),
		zap.String("collection", opts.Collection))
	return nil
}

// Stop disarms the timer, cancels an in-flight tick and waits for the
// scheduler to exit. It is a no-op for a monitor that is not running.
func (m *Monitor) Stop() {
	m.mutex.Lock()
	cancel, done := m.cancel, m.done
	if cancel == nil {
		m.mutex.Unlock()
		return
	}
	m.cancel = nil
	m.done = nil
	m.state = Stopped
	m.mutex.Unlock()

	cancel()
	<-done
	m.logger.Debug("monitor stopped")
}

// run waits for the full usage+store of a tick before arming the next one,
// so ticks of a single monitor never overlap.
func (m *Monitor) run(ctx context.Context, done chan struct{}, interval time.Duration) {
	defer close(done)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := m.tick(ctx); err != nil {
			m.fail(done, err)
			return
		}

		if next := m.Options().Interval; next > 0 {
			interval = next
		}
		timer.Reset(interval)
	}
}

// tick computes one value and hands it to the sink. Only a fatal calculator
// error is returned.
func (m *Monitor) tick(ctx context.Context) error {
	start := time.Now()

	m.mutex.Lock()
	calc, sink := m.calc, m.sink
	opts := mergeOptions(m.key, m.typeDefaults, m.overrides)
	m.mutex.Unlock()

	m.stats.ticks.Add(1)
	defer func() { m.stats.lastTick.Store(int64(time.Since(start))) }()

	value, err := calc.Usage(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		var fatal *FatalError
		if errors.As(err, &fatal) {
			return err
		}
		m.stats.usageErrors.Add(1)
		m.logger.Warn("usage computation failed", zap.Error(err))
		return nil
	}

	if err := sink.Store(ctx, opts.Collection, value); err != nil {
		m.stats.dropped.Add(1)
		m.logger.Warn("dropping sample",
			zap.String("collection", opts.Collection),
			zap.Error(err))
		return nil
	}
	m.stats.stored.Add(1)
	return nil
}

// fail moves the monitor to Failed unless the run it belongs to was
// already stopped or replaced.
func (m *Monitor) fail(done chan struct{}, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.done != done {
		return
	}
	m.cancel()
	m.cancel = nil
	m.done = nil
	m.state = Failed
	m.reason = err
	m.stats.usageErrors.Add(1)

	m.logger.Error("monitor halted", zap.Error(err))
}

type undefinedCalculator struct {
	key string
}

func (undefinedCalculator) Defaults() Layer { return Layer{} }

func (u undefinedCalculator) Usage(context.Context, Options) (Value, error) {
	return nil, fmt.Errorf("%w: %s", ErrUsageUndefined, u.key)
}

type undefinedSink struct {
	key string
}

func (u undefinedSink) Store(context.Context, string, Value) error {
	return fmt.Errorf("%w: %s", ErrPersistUndefined, u.key)
}
