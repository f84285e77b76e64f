// Package outbox stores domain events in the same transaction as the state
// change that produced them and relays them to notification handlers.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Topics written by the domain services.
const (
	TopicWorkerRegistered         = "worker.registered"
	TopicEmployerRegistered       = "employer.registered"
	TopicJobPosted                = "job.posted"
	TopicApplicationSubmitted     = "application.submitted"
	TopicApplicationStatusChanged = "application.status_changed"
	TopicApplicationReminder      = "application.reminder"
	TopicApplicationPaid          = "application.paid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusDead      Status = "dead"
)

// Message is a claimed outbox row.
type Message struct {
	ID        string
	Topic     string
	Payload   json.RawMessage
	Attempts  int
	CreatedAt time.Time
}

var ErrEmptyTopic = errors.New("outbox: empty topic")

// Writer appends messages inside the caller's transaction.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

// Enqueue marshals payload and inserts a pending row using tx.
func (w *Writer) Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	if payload == nil {
		payload = map[string]any{}
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: marshal %s payload: %w", topic, err)
	}

	const insertSQL = `
INSERT INTO outbox (topic, payload)
VALUES ($1, $2);
`
	if _, err := tx.Exec(ctx, insertSQL, topic, payloadBytes); err != nil {
		return fmt.Errorf("outbox: insert %s: %w", topic, err)
	}
	return nil
}
