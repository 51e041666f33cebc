package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	monitor "github.com/nikiz24/hostmonitor"
	"github.com/nikiz24/hostmonitor/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	store, err := monitor.OpenStore(connectCtx, monitor.StoreConfig{
		URL:       cfg.StoreURL,
		Namespace: cfg.Namespace,
		DNS:       cfg.DNS,
		Logger:    logger,
	})
	cancel()
	if err != nil {
		logger.Fatal("failed to connect to store", zap.Error(err))
	}
	defer store.Close()

	registry, err := monitor.NewHostRegistry(logger, monitor.NewStoreSink(store), cfg.SelfMonitor)
	if err != nil {
		logger.Fatal("failed to build monitors", zap.Error(err))
	}

	overrides, err := config.LoadOverrides(cfg.MonitorsFile)
	if err != nil {
		logger.Fatal("failed to load monitor overrides", zap.Error(err))
	}
	if err := config.ApplyOverrides(registry, overrides); err != nil {
		logger.Fatal("failed to apply monitor overrides", zap.Error(err))
	}

	if err := registry.StartAll(); err != nil {
		logger.Fatal("failed to start monitors", zap.Error(err))
	}

	<-ctx.Done()

	registry.StopAll()
	for key, s := range registry.Stats() {
		status := registry.Status()[key]
		logger.Info("monitor summary",
			zap.String("monitor", key),
			zap.Stringer("state", status.State),
			zap.NamedError("reason", status.Reason),
			zap.Int64("ticks", s.Ticks),
			zap.Int64("stored", s.Stored),
			zap.Int64("dropped", s.Dropped),
			zap.Int64("usage_errors", s.UsageErrors))
	}
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
