package monitor

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// StoreConfig selects and configures the backend opened by OpenStore
type StoreConfig struct {
	// URL picks the backend by scheme: postgres://, postgresql://,
	// sqlite://<path> or http(s):// for Prometheus remote write.
	URL string

	// Remote write only
	Namespace    string
	Instance     string
	CustomLabels map[string]string
	DNS          DNSConfig

	Logger *zap.Logger
}

// OpenStore connects to the backend named by cfg.URL
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid store url: %w", err)
	}

	var store Store
	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		store, err = NewPostgresStore(ctx, cfg.URL, cfg.Logger)
	case "sqlite", "sqlite3":
		path := strings.TrimPrefix(cfg.URL, u.Scheme+"://")
		if path == "" {
			return nil, fmt.Errorf("sqlite store url has no path")
		}
		store, err = NewSQLiteStore(ctx, path, cfg.Logger)
	case "http", "https":
		store, err = NewRemoteWriteStore(RemoteWriteConfig{
			URL:          cfg.URL,
			Namespace:    cfg.Namespace,
			Instance:     cfg.Instance,
			CustomLabels: cfg.CustomLabels,
			DNS:          cfg.DNS,
			Logger:       cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported store scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

var collectionPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// validateCollection rejects names that cannot be used as a table or metric name
func validateCollection(collection string) error {
	if !collectionPattern.MatchString(collection) {
		return fmt.Errorf("invalid collection name %q", collection)
	}
	return nil
}
