package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize   = 50
	DefaultMaxAttempts = 5
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Dispatcher delivers one message. A returned error schedules a retry.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// Relay moves pending outbox rows to the dispatcher with at-least-once delivery.
type Relay struct {
	pool        TxBeginner
	store       Store
	dispatcher  Dispatcher
	logger      *zap.Logger
	batchSize   int
	maxAttempts int
	now         func() time.Time
}

// RelayStats summarizes one RunOnce pass.
type RelayStats struct {
	Claimed   int
	Processed int
	Retried   int
	Dead      int
}

func NewRelay(pool TxBeginner, store Store, dispatcher Dispatcher, logger *zap.Logger) *Relay {
	if store == nil {
		store = NewStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		pool:        pool,
		store:       store,
		dispatcher:  dispatcher,
		logger:      logger.Named("outbox"),
		batchSize:   DefaultBatchSize,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
}

func (r *Relay) WithBatchSize(n int) *Relay {
	if n > 0 {
		r.batchSize = n
	}
	return r
}

func (r *Relay) WithMaxAttempts(n int) *Relay {
	if n > 0 {
		r.maxAttempts = n
	}
	return r
}

func (r *Relay) WithClock(now func() time.Time) *Relay {
	if now != nil {
		r.now = now
	}
	return r
}

// RunOnce claims one batch, dispatches each message and records the outcome.
// Dispatch failures are logged and retried on a later pass; only storage
// errors are returned.
func (r *Relay) RunOnce(ctx context.Context) (RelayStats, error) {
	var stats RelayStats

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("outbox: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	msgs, err := r.store.Claim(ctx, tx, r.batchSize)
	if err != nil {
		return stats, err
	}
	stats.Claimed = len(msgs)
	if len(msgs) == 0 {
		return stats, nil
	}

	for _, msg := range msgs {
		dispatchErr := r.dispatcher.Dispatch(ctx, msg)
		at := r.now().UTC()
		if dispatchErr == nil {
			if err := r.store.MarkProcessed(ctx, tx, msg.ID, at); err != nil {
				return stats, err
			}
			stats.Processed++
			continue
		}

		status, err := r.store.MarkFailed(ctx, tx, msg.ID, dispatchErr.Error(), at, r.maxAttempts)
		if err != nil {
			return stats, err
		}
		fields := []zap.Field{
			zap.String("id", msg.ID),
			zap.String("topic", msg.Topic),
			zap.Int("attempt", msg.Attempts+1),
			zap.Error(dispatchErr),
		}
		if status == StatusDead {
			stats.Dead++
			r.logger.Error("message moved to dead letter", fields...)
		} else {
			stats.Retried++
			r.logger.Warn("dispatch failed, will retry", fields...)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return stats, fmt.Errorf("outbox: commit tx: %w", err)
	}
	return stats, nil
}

// Drain runs RunOnce while every pass fills a whole batch without failures.
func (r *Relay) Drain(ctx context.Context) (RelayStats, error) {
	var total RelayStats
	for {
		stats, err := r.RunOnce(ctx)
		total.Claimed += stats.Claimed
		total.Processed += stats.Processed
		total.Retried += stats.Retried
		total.Dead += stats.Dead
		if err != nil {
			return total, err
		}
		if stats.Claimed < r.batchSize || stats.Processed != stats.Claimed {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, msg Message) error

func (f DispatcherFunc) Dispatch(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
