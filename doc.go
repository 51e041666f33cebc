// Package monitor periodically samples host resources (CPU, memory, disk)
// and appends every sample to a collection in a backing store.
//
// A Monitor pairs a Calculator, which produces a value, with a Sink, which
// records it. Its options are merged from three layers: global defaults,
// the calculator's metric-type defaults and instance overrides. A Registry
// owns the monitors of a process and starts or stops them together.
//
// Ticks of one monitor never overlap: the next tick is armed only after the
// previous usage computation and store have returned. A calculator can
// return a FatalError (the disk calculator does on a failed query), which
// halts its monitor in the Failed state until it is started again.
//
// Basic usage:
//
//	store, err := monitor.OpenStore(ctx, monitor.StoreConfig{
//	  URL:    "postgres://localhost:5432/system_monitor",
//	  Logger: logger,
//	})
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer store.Close()
//
//	registry, err := monitor.NewHostRegistry(logger, monitor.NewStoreSink(store), false)
//	if err != nil {
//	  log.Fatal(err)
//	}
//	if cpu, ok := registry.Get(monitor.KeyCPU); ok {
//	  cpu.Configure(monitor.Layer{UpdateInterval: monitor.Duration(500 * time.Millisecond)})
//	}
//
//	registry.StartAll()
//	defer registry.StopAll()
package monitor
