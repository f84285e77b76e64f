// Package fakes holds in-memory stand-ins for pgx transactions used by
// service unit tests.
package fakes

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool hands out a fresh Tx for every Begin and keeps them for inspection.
type Pool struct {
	mu       sync.Mutex
	BeginErr error
	ExecErr  error
	Txs      []*Tx
}

func (p *Pool) Begin(context.Context) (pgx.Tx, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.BeginErr != nil {
		return nil, p.BeginErr
	}
	tx := &Tx{ExecErr: p.ExecErr}
	p.Txs = append(p.Txs, tx)
	return tx, nil
}

// Last returns the most recently started transaction, or nil.
func (p *Pool) Last() *Tx {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Txs) == 0 {
		return nil
	}
	return p.Txs[len(p.Txs)-1]
}

// Exec is one recorded Tx.Exec call.
type Exec struct {
	SQL  string
	Args []any
}

// Tx records Exec calls and commit/rollback state.
type Tx struct {
	mu         sync.Mutex
	ExecErr    error
	Execs      []Exec
	Committed  bool
	RolledBack bool
}

func (t *Tx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakes: nested transactions not supported")
}

func (t *Tx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Committed = true
	return nil
}

// Rollback after Commit is a no-op, as with pgx.
func (t *Tx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

func (t *Tx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (t *Tx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (t *Tx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (t *Tx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (t *Tx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ExecErr != nil {
		return pgconn.CommandTag{}, t.ExecErr
	}
	t.Execs = append(t.Execs, Exec{SQL: sql, Args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (t *Tx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (t *Tx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (t *Tx) Conn() *pgx.Conn {
	return nil
}
