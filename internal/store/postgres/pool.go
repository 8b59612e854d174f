// Package postgres implements store.Store over a pgx connection pool.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaFS embed.FS

// poolMaxConns matches the "bounded connection pool, ~20" in the store's
// component design.
const poolMaxConns = 20

// NewPool opens a bounded pgx connection pool and applies schema.sql.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = poolMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return pool, nil
}

// Store wraps a pgxpool.Pool and implements store.Store, logging any
// statement that exceeds the 100ms slow-query threshold.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New wraps an already-open pool. logger receives slow-query warnings.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

const slowQueryThreshold = 100 * time.Millisecond

func (s *Store) observe(op string, start time.Time) {
	if d := time.Since(start); d > slowQueryThreshold {
		s.logger.Warn("store: slow query", "operation", op, "duration_ms", d.Milliseconds())
	}
}
