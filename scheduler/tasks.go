package scheduler

import (
	"context"
	"time"

	"gigmatch/outbox"

	"go.uber.org/zap"
)

const (
	TaskRelay     = "outbox-relay"
	TaskReminders = "start-reminders"
)

// Relay is the outbox relay contract.
type Relay interface {
	Drain(ctx context.Context) (outbox.RelayStats, error)
}

// Reminders enqueues start reminders for jobs starting within window.
type Reminders interface {
	EnqueueStartReminders(ctx context.Context, window time.Duration) (int, error)
}

// RelayTask drains the outbox.
func RelayTask(relay Relay, logger *zap.Logger) Task {
	return func(ctx context.Context) error {
		stats, err := relay.Drain(ctx)
		if stats.Claimed > 0 && logger != nil {
			logger.Info("outbox relayed",
				zap.Int("claimed", stats.Claimed),
				zap.Int("processed", stats.Processed),
				zap.Int("retried", stats.Retried),
				zap.Int("dead", stats.Dead),
			)
		}
		return err
	}
}

// ReminderTask enqueues application.reminder for upcoming jobs.
func ReminderTask(reminders Reminders, window time.Duration, logger *zap.Logger) Task {
	return func(ctx context.Context) error {
		n, err := reminders.EnqueueStartReminders(ctx, window)
		if n > 0 && logger != nil {
			logger.Info("start reminders enqueued", zap.Int("count", n), zap.Duration("window", window))
		}
		return err
	}
}
