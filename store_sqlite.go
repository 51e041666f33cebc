package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore keeps one table per collection with the value stored as JSON text
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
	tables sync.Map
}

// NewSQLiteStore opens (creating if needed) the database file at path
func NewSQLiteStore(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database not responding: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("sqlite connection established", zap.String("path", path))

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Insert implements Store
func (s *SQLiteStore) Insert(ctx context.Context, collection string, doc Document) error {
	if err := s.ensureTable(ctx, collection); err != nil {
		return err
	}

	value, err := json.Marshal(doc.Value)
	if err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %q (id, created_at, value) VALUES (?, ?, ?)`, collection)
	if _, err := s.db.ExecContext(ctx, query, doc.ID, doc.CreatedAt, string(value)); err != nil {
		return fmt.Errorf("inserting into %s: %w", collection, err)
	}
	return nil
}

func (s *SQLiteStore) ensureTable(ctx context.Context, collection string) error {
	if _, ok := s.tables.Load(collection); ok {
		return nil
	}
	if err := validateCollection(collection); err != nil {
		return err
	}

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %q (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		value TEXT NOT NULL
	);
	`, collection)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to migrate %s table: %w", collection, err)
	}

	s.tables.Store(collection, struct{}{})
	s.logger.Debug("collection ready", zap.String("collection", collection))
	return nil
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
