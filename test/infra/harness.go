package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Harness owns the database used by a suite: a container or a shared DSN,
// the migrated pool, and the teardown of both.
type Harness struct {
	container *PGContainer
	pool      *pgxpool.Pool
	dsn       string
	teardown  func(context.Context) error
}

// NewHarness starts Postgres (or reuses dsn / GIGMATCH_TEST_PG_DSN) and applies
// the embedded migrations. A shared database gets an isolated schema.
func NewHarness(ctx context.Context, dsn string) (*Harness, error) {
	container, resolved, err := StartPostgres16(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("infra: start postgres: %w", err)
	}
	shared := container.C == nil

	pool, teardown, err := ApplyMigrations(ctx, resolved, shared)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &Harness{
		container: container,
		pool:      pool,
		dsn:       resolved,
		teardown:  teardown,
	}, nil
}

// Pool exposes the migrated pgx pool.
func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

// DSN returns the connection string for direct connections.
func (h *Harness) DSN() string {
	return h.dsn
}

// Close tears down resources.
func (h *Harness) Close(ctx context.Context) {
	if h.pool != nil {
		h.pool.Close()
	}
	if h.teardown != nil {
		_ = h.teardown(ctx)
	}
	_ = h.container.Terminate(ctx)
}

// Reset truncates mutable tables, children first.
func (h *Harness) Reset(ctx context.Context) error {
	tables := []string{
		"outbox",
		"applications",
		"jobs",
		"employers",
		"workers",
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("infra: reset begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, tbl := range tables {
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+tbl+" CASCADE"); err != nil {
			return fmt.Errorf("infra: truncate %s: %w", tbl, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("infra: reset commit: %w", err)
	}
	return nil
}
