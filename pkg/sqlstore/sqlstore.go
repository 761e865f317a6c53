// Package sqlstore provides the shared SQL access helper for the
// SQL-backed provider families (LOINC, RxNorm, NDC, OMOP). Schema
// details are each family's own concern; this package only wraps
// connection pooling and a thin query helper, leaving prepared
// statement shapes to each provider package.
package sqlstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgx connection pool for one provider family's backing
// database.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and verifies connectivity with a ping.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// FromPool wraps an already-constructed pool, e.g. one shared across
// several provider families in the same process.
func FromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool's connections.
func (s *Store) Close() { s.pool.Close() }

// Pool exposes the underlying pool for providers that need direct
// access to pgx's Query/QueryRow/Exec beyond RowsFunc's scope.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// RowsFunc runs query with args and calls scan once per returned row;
// scan should read from the pgx.Rows passed to it via its own closure
// over typed destination variables (the common one-struct-per-row
// pattern from pgx's own documentation).
func (s *Store) RowsFunc(ctx context.Context, query string, args []any, scan func(row Scanner) error) error {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sqlstore: query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Scanner is the subset of pgx.Rows providers need to pull typed
// columns, kept small so provider packages don't import pgx directly.
type Scanner interface {
	Scan(dest ...any) error
}

// QueryRow runs a single-row query.
func (s *Store) QueryRow(ctx context.Context, query string, args ...any) Scanner {
	return s.pool.QueryRow(ctx, query, args...)
}
