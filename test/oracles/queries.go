package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Oracle is a query that returns rows only when an invariant is broken.
type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_application",
			SQL: `SELECT job_id, worker_id, COUNT(*) FROM applications
				GROUP BY job_id, worker_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_accepted_ineligible",
			SQL: `SELECT a.id, w.age, w.experience, j.required_experience
				FROM applications a
				JOIN workers w ON w.id = a.worker_id
				JOIN jobs j ON j.id = a.job_id
				WHERE a.status IN ('accepted', 'in-progress', 'completed')
				  AND (w.age < 18 OR w.age > 70 OR w.experience < j.required_experience)`,
		},
		{
			Name: "O3_open_job_with_started_work",
			SQL: `SELECT j.id, a.id, a.status FROM jobs j
				JOIN applications a ON a.job_id = j.id
				WHERE j.status = 'open' AND a.status IN ('in-progress', 'completed')`,
		},
		{
			Name: "O4_completed_job_without_completed_work",
			SQL: `SELECT j.id FROM jobs j
				WHERE j.status = 'completed'
				  AND NOT EXISTS (SELECT 1 FROM applications a WHERE a.job_id = j.id AND a.status = 'completed')`,
		},
		{
			Name: "O5_payment_consistency",
			SQL: `SELECT id, status, payment_amount, payment_date FROM applications
				WHERE (payment_status = 'paid'
				       AND (status <> 'completed' OR payment_amount IS NULL OR payment_amount <= 0 OR payment_date IS NULL))
				   OR (payment_status = 'unpaid' AND payment_amount IS NOT NULL)`,
		},
		{
			Name: "O6_history_tracks_status",
			SQL: `SELECT id, status, history FROM applications
				WHERE jsonb_array_length(history) = 0 OR history->-1->>'to' <> status`,
		},
		{
			Name: "O7_submission_event",
			SQL: `SELECT a.id FROM applications a
				WHERE NOT EXISTS (
					SELECT 1 FROM outbox o
					WHERE o.topic = 'application.submitted' AND o.payload->>'application_id' = a.id::text)`,
		},
		{
			Name: "O8_outbox_terminal_states",
			SQL: `SELECT id, status, attempts FROM outbox
				WHERE (status = 'processed' AND last_attempt IS NULL)
				   OR (status = 'pending' AND now() - created_at > interval '5 minutes')`,
		},
		{
			Name: "O9_completed_job_with_open_applications",
			SQL: `SELECT j.id, a.id, a.status FROM jobs j
				JOIN applications a ON a.job_id = j.id
				WHERE j.status = 'completed' AND a.status IN ('pending', 'accepted', 'in-progress')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
