package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Store is the data access used by Relay.
type Store interface {
	Claim(ctx context.Context, tx pgx.Tx, limit int) ([]Message, error)
	MarkProcessed(ctx context.Context, tx pgx.Tx, id string, at time.Time) error
	MarkFailed(ctx context.Context, tx pgx.Tx, id string, cause string, at time.Time, maxAttempts int) (Status, error)
}

type PGStore struct{}

func NewStore() *PGStore {
	return &PGStore{}
}

// Claim locks up to limit pending rows, oldest first. Rows locked by another
// relay are skipped.
func (s *PGStore) Claim(ctx context.Context, tx pgx.Tx, limit int) ([]Message, error) {
	const query = `
SELECT id::text, topic, payload, attempts, created_at
FROM outbox
WHERE status = 'pending'
ORDER BY created_at, id
LIMIT $1
FOR UPDATE SKIP LOCKED
`
	rows, err := tx.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: claim: %w", err)
	}
	defer rows.Close()

	msgs := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Topic, &m.Payload, &m.Attempts, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("outbox: scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: iterate: %w", err)
	}
	return msgs, nil
}

func (s *PGStore) MarkProcessed(ctx context.Context, tx pgx.Tx, id string, at time.Time) error {
	const updateSQL = `
UPDATE outbox
SET status = 'processed',
    attempts = attempts + 1,
    last_attempt = $2,
    last_error = NULL
WHERE id = $1
`
	if _, err := tx.Exec(ctx, updateSQL, id, at); err != nil {
		return fmt.Errorf("outbox: mark processed: %w", err)
	}
	return nil
}

// MarkFailed records the failure and moves the row to dead once maxAttempts is reached.
func (s *PGStore) MarkFailed(ctx context.Context, tx pgx.Tx, id string, cause string, at time.Time, maxAttempts int) (Status, error) {
	const updateSQL = `
UPDATE outbox
SET attempts = attempts + 1,
    last_attempt = $2,
    last_error = $3,
    status = CASE WHEN attempts + 1 >= $4 THEN 'dead' ELSE 'pending' END
WHERE id = $1
RETURNING status
`
	var status Status
	if err := tx.QueryRow(ctx, updateSQL, id, at, cause, maxAttempts).Scan(&status); err != nil {
		return "", fmt.Errorf("outbox: mark failed: %w", err)
	}
	return status, nil
}
