package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore keeps one table per collection with the value stored as JSONB
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tables sync.Map
}

// NewPostgresStore connects a pool to connString and checks it responds
func NewPostgresStore(ctx context.Context, connString string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database not responding: %w", err)
	}

	logger.Info("postgres connection established",
		zap.String("database", pool.Config().ConnConfig.Database))

	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Insert implements Store
func (s *PostgresStore) Insert(ctx context.Context, collection string, doc Document) error {
	if err := s.ensureTable(ctx, collection); err != nil {
		return err
	}

	value, err := json.Marshal(doc.Value)
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, created_at, value) VALUES ($1, $2, $3)`,
		pgx.Identifier{collection}.Sanitize())
	if _, err := s.pool.Exec(ctx, query, doc.ID, doc.CreatedAt, value); err != nil {
		return fmt.Errorf("inserting into %s: %w", collection, err)
	}
	return nil
}

func (s *PostgresStore) ensureTable(ctx context.Context, collection string) error {
	if _, ok := s.tables.Load(collection); ok {
		return nil
	}
	if err := validateCollection(collection); err != nil {
		return err
	}

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		value JSONB NOT NULL
	)`, pgx.Identifier{collection}.Sanitize())
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to migrate %s table: %w", collection, err)
	}

	s.tables.Store(collection, struct{}{})
	s.logger.Debug("collection ready", zap.String("collection", collection))
	return nil
}

// Close implements Store
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
