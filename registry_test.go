package monitor

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestRegistry_Construct(t *testing.T) {
	r := NewRegistry(nil)
	m, err := r.Construct("net")
	if err != nil {
		t.Fatalf("Construct() error = %v", err)
	}

	opts := m.Options()
	if opts.Collection != "net" {
		t.Errorf("Collection = %q, want net", opts.Collection)
	}
	if opts.Interval != DefaultInterval {
		t.Errorf("Interval = %v, want %v", opts.Interval, DefaultInterval)
	}

	got, ok := r.Get("net")
	if !ok || got != m {
		t.Errorf("Get(net) = %v, %v, want the constructed monitor", got, ok)
	}
	if _, err := m.calc.Usage(context.Background(), opts); !errors.Is(err, ErrUsageUndefined) {
		t.Errorf("placeholder Usage() error = %v, want ErrUsageUndefined", err)
	}
	if err := m.sink.Store(context.Background(), "net", Percent(1)); !errors.Is(err, ErrPersistUndefined) {
		t.Errorf("placeholder Store() error = %v, want ErrPersistUndefined", err)
	}
}

func TestRegistry_ConstructRejectsDuplicates(t *testing.T) {
	r := NewRegistry(nil)
	first, err := r.Construct("cpu")
	if err != nil {
		t.Fatalf("Construct() error = %v", err)
	}

	if _, err := r.Construct("cpu"); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("second Construct() error = %v, want ErrDuplicateKey", err)
	}
	if got := len(r.Monitors()); got != 1 {
		t.Errorf("registry holds %d monitors, want 1", got)
	}
	if got, _ := r.Get("cpu"); got != first {
		t.Error("duplicate Construct() replaced the registered monitor")
	}
}

func TestRegistry_ConstructRejectsEmptyKey(t *testing.T) {
	r := NewRegistry(nil)
	if _, err := r.Construct(""); err == nil {
		t.Error("Construct(\"\") should fail")
	}
}

func TestRegistry_KeysInRegistrationOrder(t *testing.T) {
	r := NewRegistry(nil)
	want := []string{"b", "a", "c"}
	for _, k := range want {
		if _, err := r.Construct(k); err != nil {
			t.Fatalf("Construct(%q) error = %v", k, err)
		}
	}
	if got := r.Keys(); !slices.Equal(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry(nil)
	if err := RegisterBuiltins(r, &recordingSink{}); err != nil {
		t.Fatalf("RegisterBuiltins() error = %v", err)
	}

	want := []string{KeyCPU, KeyMemory, KeyDisk}
	if got := r.Keys(); !slices.Equal(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}

	cpu, _ := r.Get(KeyCPU)
	if got := cpu.Options().UpdateInterval; got <= 0 {
		t.Errorf("cpu UpdateInterval = %v, want the type default", got)
	}
	disk, _ := r.Get(KeyDisk)
	if got := disk.Options().MountPoint; got != "/" {
		t.Errorf("disk MountPoint = %q, want /", got)
	}

	if err := RegisterBuiltins(r, &recordingSink{}); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("second RegisterBuiltins() error = %v, want ErrDuplicateKey", err)
	}
}

func TestNewHostRegistry_SelfMonitor(t *testing.T) {
	r, err := NewHostRegistry(zap.NewNop(), &recordingSink{}, true)
	if err != nil {
		t.Fatalf("NewHostRegistry() error = %v", err)
	}
	m, ok := r.Get(KeyProcess)
	if !ok {
		t.Fatal("process monitor not registered")
	}
	if got := m.Options().Interval; got <= DefaultInterval {
		t.Errorf("process Interval = %v, want longer than %v", got, DefaultInterval)
	}
}

func TestRegistry_StartAllRejectsInvalidButStartsOthers(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	sink := &recordingSink{}

	bad, _ := r.Register("bad", constCalculator{value: Percent(1)}, sink)
	bad.Configure(Layer{Interval: Duration(-1)})
	good, _ := r.Register("good", constCalculator{value: Percent(2)}, sink)
	good.Configure(fastLayer())

	if err := r.StartAll(); err == nil {
		t.Error("StartAll() should report the invalid monitor")
	}
	defer r.StopAll()

	waitFor(t, "good samples", func() bool { return sink.count("good") >= 1 })
	if got := r.Status()["bad"].State; got != Idle {
		t.Errorf("bad State = %v, want idle", got)
	}
}

func TestRegistry_DiskFailureIsolatedAndRestartable(t *testing.T) {
	var broken atomic.Bool
	broken.Store(true)

	disk := NewDiskCalculatorWithSource(func(_ context.Context, path string) (uint64, uint64, error) {
		if broken.Load() {
			return 0, 0, errors.New("no such mount point")
		}
		return 500 * megabyte, 1000 * megabyte, nil
	})

	r := NewRegistry(zaptest.NewLogger(t))
	sink := &recordingSink{}
	if _, err := r.Register("load", constCalculator{value: Percent(10)}, sink); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register(KeyDisk, disk, sink); err != nil {
		t.Fatal(err)
	}
	for _, m := range r.Monitors() {
		m.Configure(fastLayer())
	}

	if err := r.StartAll(); err != nil {
		t.Fatalf("StartAll() error = %v", err)
	}

	waitFor(t, "disk failure", func() bool { return r.Status()[KeyDisk].State == Failed })

	before := sink.count("load")
	waitFor(t, "other monitor to keep ticking", func() bool { return sink.count("load") > before+2 })
	if got := sink.count(KeyDisk); got != 0 {
		t.Errorf("disk stored %d samples while failing, want 0", got)
	}

	broken.Store(false)
	r.StopAll()
	if err := r.StartAll(); err != nil {
		t.Fatalf("StartAll() after StopAll() error = %v", err)
	}
	defer r.StopAll()

	waitFor(t, "disk samples after restart", func() bool { return sink.count(KeyDisk) >= 1 })

	status := r.Status()[KeyDisk]
	if status.State != Running || status.Reason != nil {
		t.Errorf("disk Status = %+v, want running with no reason", status)
	}
	v, _ := sink.last(KeyDisk)
	if want := (DiskUsage{Free: 500, Used: 500}); v != want {
		t.Errorf("disk value = %+v, want %+v", v, want)
	}
}

func TestRegistry_StatsAndStatus(t *testing.T) {
	r := NewRegistry(nil)
	sink := &recordingSink{}
	m, _ := r.Register("s", constCalculator{value: Percent(1)}, sink)
	m.Configure(fastLayer())

	if err := r.StartAll(); err != nil {
		t.Fatalf("StartAll() error = %v", err)
	}
	waitFor(t, "stored samples", func() bool { return r.Stats()["s"].Stored >= 2 })
	r.StopAll()

	s := r.Stats()["s"]
	if s.Ticks < s.Stored {
		t.Errorf("Ticks = %d < Stored = %d", s.Ticks, s.Stored)
	}
	if got := r.Status()["s"].State; got != Stopped {
		t.Errorf("State = %v, want stopped", got)
	}
}
