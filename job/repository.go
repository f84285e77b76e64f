package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gigmatch/profile"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals that the job does not exist.
	ErrNotFound = errors.New("job: not found")
	// ErrApplicationNotFound signals that the application does not exist for the job.
	ErrApplicationNotFound = errors.New("job: application not found")
	// ErrDuplicateApplication signals a second application for the same (worker, job).
	ErrDuplicateApplication = errors.New("job: worker already applied to this job")
	// ErrUnknownParty signals that the referenced worker or employer does not exist.
	ErrUnknownParty = errors.New("job: referenced worker or employer not found")
)

// Repository handles job and application persistence. Writes run inside the caller's tx.
type Repository interface {
	CreateJob(ctx context.Context, tx pgx.Tx, j Job) (Job, error)
	GetJob(ctx context.Context, id string) (Job, error)
	GetJobForUpdate(ctx context.Context, tx pgx.Tx, id string) (Job, error)
	UpdateJobStatus(ctx context.Context, tx pgx.Tx, id string, status Status) (Job, error)
	ListJobs(ctx context.Context, filter Filter) ([]Job, error)

	CreateApplication(ctx context.Context, tx pgx.Tx, app Application) (Application, error)
	GetApplicationForUpdate(ctx context.Context, tx pgx.Tx, id string) (Application, error)
	UpdateApplicationStatus(ctx context.Context, tx pgx.Tx, id string, to ApplicationStatus, entry HistoryEntry) (Application, error)
	RecordPayment(ctx context.Context, tx pgx.Tx, id string, amount float64, at time.Time) (Application, error)
	CountActiveApplications(ctx context.Context, tx pgx.Tx, jobID string) (int, error)
	RejectPendingApplications(ctx context.Context, tx pgx.Tx, jobID string, entry HistoryEntry) ([]Application, error)
	ListApplicationsByJob(ctx context.Context, jobID string) ([]Application, error)
	ListApplicationsByWorker(ctx context.Context, workerID string) ([]Application, error)
	ApplicationContacts(ctx context.Context, tx pgx.Tx, applicationID string) (Contacts, error)
	ClaimDueReminders(ctx context.Context, tx pgx.Tx, from, to time.Time, limit int) ([]Application, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const jobColumns = `id::text, employer_id::text, title, description, required_skills, address, lon, lat,
	wage_amount, wage_period, duration, required_experience, preferred_languages, start_date, status,
	created_at, updated_at`

const applicationColumns = `id::text, job_id::text, worker_id::text, status, applied_at, payment_status,
	payment_amount, payment_date, history, reminded_at, updated_at`

func (r *PGRepository) CreateJob(ctx context.Context, tx pgx.Tx, j Job) (Job, error) {
	lon, lat := pointArgs(j.Location)
	query := `
		INSERT INTO jobs (id, employer_id, title, description, required_skills, address, lon, lat,
			wage_amount, wage_period, duration, required_experience, preferred_languages, start_date, status)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING ` + jobColumns

	created, err := scanJob(tx.QueryRow(ctx, query,
		j.ID, j.EmployerID, j.Title, j.Description, j.RequiredSkills, j.Location.Address, lon, lat,
		j.Wage.Amount, j.Wage.Period, j.Duration, j.RequiredExperience, j.PreferredLanguages, j.StartDate, j.Status,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return Job{}, ErrUnknownParty
		}
		return Job{}, fmt.Errorf("job: create: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetJob(ctx context.Context, id string) (Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Job{}, ErrNotFound
	}
	j, err := scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, fmt.Errorf("job: get: %w", err)
	}
	return j, nil
}

func (r *PGRepository) GetJobForUpdate(ctx context.Context, tx pgx.Tx, id string) (Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Job{}, ErrNotFound
	}
	j, err := scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, fmt.Errorf("job: get for update: %w", err)
	}
	return j, nil
}

func (r *PGRepository) UpdateJobStatus(ctx context.Context, tx pgx.Tx, id string, status Status) (Job, error) {
	query := `
		UPDATE jobs
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + jobColumns
	j, err := scanJob(tx.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, ErrNotFound
		}
		return Job{}, fmt.Errorf("job: update status: %w", err)
	}
	return j, nil
}

func (r *PGRepository) ListJobs(ctx context.Context, filter Filter) ([]Job, error) {
	where := []string{"1=1"}
	args := []any{}

	if filter.EmployerID != "" {
		if _, err := uuid.Parse(filter.EmployerID); err != nil {
			return []Job{}, nil
		}
		where = append(where, fmt.Sprintf("employer_id = $%d", len(args)+1))
		args = append(args, filter.EmployerID)
	}
	if filter.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("job: list: %w", err)
	}
	defer rows.Close()

	jobs := make([]Job, 0, 16)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("job: scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("job: iterate: %w", err)
	}
	return jobs, nil
}

func (r *PGRepository) CreateApplication(ctx context.Context, tx pgx.Tx, app Application) (Application, error) {
	history, err := json.Marshal(app.History)
	if err != nil {
		return Application{}, fmt.Errorf("job: marshal history: %w", err)
	}
	if app.History == nil {
		history = []byte("[]")
	}

	query := `
		INSERT INTO applications (id, job_id, worker_id, status, applied_at, payment_status, history)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7::jsonb)
		RETURNING ` + applicationColumns

	created, err := scanApplication(tx.QueryRow(ctx, query,
		app.ID, app.JobID, app.WorkerID, app.Status, app.AppliedAt, app.PaymentStatus, history,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Application{}, ErrDuplicateApplication
		}
		if isForeignKeyViolation(err) {
			return Application{}, ErrUnknownParty
		}
		return Application{}, fmt.Errorf("job: create application: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetApplicationForUpdate(ctx context.Context, tx pgx.Tx, id string) (Application, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Application{}, ErrApplicationNotFound
	}
	app, err := scanApplication(tx.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Application{}, ErrApplicationNotFound
		}
		return Application{}, fmt.Errorf("job: get application for update: %w", err)
	}
	return app, nil
}

func (r *PGRepository) UpdateApplicationStatus(ctx context.Context, tx pgx.Tx, id string, to ApplicationStatus, entry HistoryEntry) (Application, error) {
	entryJSON, err := json.Marshal([]HistoryEntry{entry})
	if err != nil {
		return Application{}, fmt.Errorf("job: marshal history entry: %w", err)
	}

	query := `
		UPDATE applications
		SET status = $2,
		    history = history || $3::jsonb,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + applicationColumns
	app, err := scanApplication(tx.QueryRow(ctx, query, id, to, entryJSON))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Application{}, ErrApplicationNotFound
		}
		return Application{}, fmt.Errorf("job: update application status: %w", err)
	}
	return app, nil
}

func (r *PGRepository) RecordPayment(ctx context.Context, tx pgx.Tx, id string, amount float64, at time.Time) (Application, error) {
	query := `
		UPDATE applications
		SET payment_status = 'paid',
		    payment_amount = $2,
		    payment_date = $3,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + applicationColumns
	app, err := scanApplication(tx.QueryRow(ctx, query, id, amount, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Application{}, ErrApplicationNotFound
		}
		return Application{}, fmt.Errorf("job: record payment: %w", err)
	}
	return app, nil
}

func (r *PGRepository) CountActiveApplications(ctx context.Context, tx pgx.Tx, jobID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM applications WHERE job_id = $1 AND status IN ('accepted', 'in-progress')`,
		jobID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("job: count active applications: %w", err)
	}
	return n, nil
}

// RejectPendingApplications rejects every pending application of a job,
// appending entry to each history.
func (r *PGRepository) RejectPendingApplications(ctx context.Context, tx pgx.Tx, jobID string, entry HistoryEntry) ([]Application, error) {
	entryJSON, err := json.Marshal([]HistoryEntry{entry})
	if err != nil {
		return nil, fmt.Errorf("job: marshal history entry: %w", err)
	}

	query := `
		UPDATE applications
		SET status = 'rejected',
		    history = history || $2::jsonb,
		    updated_at = NOW()
		WHERE job_id = $1 AND status = 'pending'
		RETURNING ` + applicationColumns
	rows, err := tx.Query(ctx, query, jobID, entryJSON)
	if err != nil {
		return nil, fmt.Errorf("job: reject pending applications: %w", err)
	}
	defer rows.Close()

	apps := make([]Application, 0, 4)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("job: scan rejected application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("job: iterate rejected applications: %w", err)
	}
	return apps, nil
}

func (r *PGRepository) ListApplicationsByJob(ctx context.Context, jobID string) ([]Application, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return []Application{}, nil
	}
	return r.listApplications(ctx, `SELECT `+applicationColumns+` FROM applications WHERE job_id = $1 ORDER BY applied_at, id`, jobID)
}

func (r *PGRepository) ListApplicationsByWorker(ctx context.Context, workerID string) ([]Application, error) {
	if _, err := uuid.Parse(workerID); err != nil {
		return []Application{}, nil
	}
	return r.listApplications(ctx, `SELECT `+applicationColumns+` FROM applications WHERE worker_id = $1 ORDER BY applied_at DESC, id`, workerID)
}

func (r *PGRepository) listApplications(ctx context.Context, query string, arg string) ([]Application, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("job: list applications: %w", err)
	}
	defer rows.Close()

	apps := make([]Application, 0, 8)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("job: scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("job: iterate applications: %w", err)
	}
	return apps, nil
}

func (r *PGRepository) ApplicationContacts(ctx context.Context, tx pgx.Tx, applicationID string) (Contacts, error) {
	const query = `
		SELECT j.title, j.start_date, w.name, w.phone, e.name, e.phone
		FROM applications a
		JOIN jobs j ON j.id = a.job_id
		JOIN workers w ON w.id = a.worker_id
		JOIN employers e ON e.id = j.employer_id
		WHERE a.id = $1
	`
	var c Contacts
	err := tx.QueryRow(ctx, query, applicationID).Scan(
		&c.JobTitle, &c.StartDate, &c.WorkerName, &c.WorkerPhone, &c.EmployerName, &c.EmployerPhone,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contacts{}, ErrApplicationNotFound
		}
		return Contacts{}, fmt.Errorf("job: application contacts: %w", err)
	}
	return c, nil
}

// ClaimDueReminders marks accepted applications whose job starts within
// [from, to] as reminded and returns them. Each application is claimed once.
func (r *PGRepository) ClaimDueReminders(ctx context.Context, tx pgx.Tx, from, to time.Time, limit int) ([]Application, error) {
	query := `
		WITH due AS (
			SELECT a.id
			FROM applications a
			JOIN jobs j ON j.id = a.job_id
			WHERE a.status = 'accepted'
			  AND a.reminded_at IS NULL
			  AND j.start_date BETWEEN $1 AND $2
			ORDER BY j.start_date, a.id
			LIMIT $3
			FOR UPDATE OF a SKIP LOCKED
		)
		UPDATE applications
		SET reminded_at = $1
		FROM due
		WHERE applications.id = due.id
		RETURNING ` + qualify("applications", applicationColumns)

	rows, err := tx.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("job: claim reminders: %w", err)
	}
	defer rows.Close()

	apps := make([]Application, 0, 8)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("job: scan reminder: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("job: iterate reminders: %w", err)
	}
	return apps, nil
}

func scanJob(row pgx.Row) (Job, error) {
	var (
		j        Job
		lon, lat *float64
	)
	err := row.Scan(
		&j.ID,
		&j.EmployerID,
		&j.Title,
		&j.Description,
		&j.RequiredSkills,
		&j.Location.Address,
		&lon,
		&lat,
		&j.Wage.Amount,
		&j.Wage.Period,
		&j.Duration,
		&j.RequiredExperience,
		&j.PreferredLanguages,
		&j.StartDate,
		&j.Status,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return Job{}, err
	}
	if lon != nil && lat != nil {
		j.Location.Point = &profile.Point{Lon: *lon, Lat: *lat}
	}
	return j, nil
}

func scanApplication(row pgx.Row) (Application, error) {
	var app Application
	err := row.Scan(
		&app.ID,
		&app.JobID,
		&app.WorkerID,
		&app.Status,
		&app.AppliedAt,
		&app.PaymentStatus,
		&app.PaymentAmount,
		&app.PaymentDate,
		&app.History,
		&app.RemindedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return Application{}, err
	}
	if app.History == nil {
		app.History = []HistoryEntry{}
	}
	return app, nil
}

func pointArgs(loc profile.Location) (any, any) {
	if loc.Point == nil {
		return nil, nil
	}
	return loc.Point.Lon, loc.Point.Lat
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// qualify prefixes each column of a comma separated list with table.
func qualify(table, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = table + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
