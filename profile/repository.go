package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrWorkerNotFound signals that no worker exists for the id.
	ErrWorkerNotFound = errors.New("profile: worker not found")
	// ErrEmployerNotFound signals that no employer exists for the id.
	ErrEmployerNotFound = errors.New("profile: employer not found")
	// ErrDuplicatePhone signals that the phone is already registered for the record type.
	ErrDuplicatePhone = errors.New("profile: phone already registered")
)

// Repository handles profile persistence. Writes run inside the caller's tx.
type Repository interface {
	CreateWorker(ctx context.Context, tx pgx.Tx, w Worker) (Worker, error)
	GetWorker(ctx context.Context, id string) (Worker, error)
	GetWorkerForUpdate(ctx context.Context, tx pgx.Tx, id string) (Worker, error)
	UpdateWorker(ctx context.Context, tx pgx.Tx, w Worker) (Worker, error)
	ListAvailableWorkers(ctx context.Context) ([]Worker, error)
	CreateEmployer(ctx context.Context, tx pgx.Tx, e Employer) (Employer, error)
	GetEmployer(ctx context.Context, id string) (Employer, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const workerColumns = `id::text, name, age, phone, password_hash, skills, experience, languages,
	address, lon, lat, shakti_score, is_available, created_at, updated_at`

const employerColumns = `id::text, name, phone, email, password_hash, company_name, company_description,
	company_registration, address, lon, lat, created_at, updated_at`

func (r *PGRepository) CreateWorker(ctx context.Context, tx pgx.Tx, w Worker) (Worker, error) {
	lon, lat := pointArgs(w.Location)
	query := `
		INSERT INTO workers (id, name, age, phone, password_hash, skills, experience, languages,
			address, lon, lat, shakti_score, is_available)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + workerColumns

	worker, err := scanWorker(tx.QueryRow(ctx, query,
		w.ID, w.Name, w.Age, w.Phone, w.PasswordHash, w.Skills, w.Experience, w.Languages,
		w.Location.Address, lon, lat, w.ShaktiScore, w.IsAvailable,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Worker{}, ErrDuplicatePhone
		}
		return Worker{}, fmt.Errorf("profile: create worker: %w", err)
	}
	return worker, nil
}

func (r *PGRepository) GetWorker(ctx context.Context, id string) (Worker, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Worker{}, ErrWorkerNotFound
	}
	worker, err := scanWorker(r.pool.QueryRow(ctx, `SELECT `+workerColumns+` FROM workers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Worker{}, ErrWorkerNotFound
		}
		return Worker{}, fmt.Errorf("profile: get worker: %w", err)
	}
	return worker, nil
}

func (r *PGRepository) GetWorkerForUpdate(ctx context.Context, tx pgx.Tx, id string) (Worker, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Worker{}, ErrWorkerNotFound
	}
	worker, err := scanWorker(tx.QueryRow(ctx, `SELECT `+workerColumns+` FROM workers WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Worker{}, ErrWorkerNotFound
		}
		return Worker{}, fmt.Errorf("profile: get worker for update: %w", err)
	}
	return worker, nil
}

func (r *PGRepository) UpdateWorker(ctx context.Context, tx pgx.Tx, w Worker) (Worker, error) {
	lon, lat := pointArgs(w.Location)
	query := `
		UPDATE workers
		SET name = $2, age = $3, skills = $4, experience = $5, languages = $6,
		    address = $7, lon = $8, lat = $9, shakti_score = $10, is_available = $11,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + workerColumns

	worker, err := scanWorker(tx.QueryRow(ctx, query,
		w.ID, w.Name, w.Age, w.Skills, w.Experience, w.Languages,
		w.Location.Address, lon, lat, w.ShaktiScore, w.IsAvailable,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Worker{}, ErrWorkerNotFound
		}
		return Worker{}, fmt.Errorf("profile: update worker: %w", err)
	}
	return worker, nil
}

func (r *PGRepository) ListAvailableWorkers(ctx context.Context) ([]Worker, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+workerColumns+` FROM workers WHERE is_available ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("profile: list available workers: %w", err)
	}
	defer rows.Close()

	workers := make([]Worker, 0, 16)
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("profile: scan worker: %w", err)
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("profile: iterate workers: %w", err)
	}
	return workers, nil
}

func (r *PGRepository) CreateEmployer(ctx context.Context, tx pgx.Tx, e Employer) (Employer, error) {
	lon, lat := pointArgs(e.Location)
	query := `
		INSERT INTO employers (id, name, phone, email, password_hash, company_name, company_description,
			company_registration, address, lon, lat)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + employerColumns

	employer, err := scanEmployer(tx.QueryRow(ctx, query,
		e.ID, e.Name, e.Phone, e.Email, e.PasswordHash, e.Company.Name, e.Company.Description,
		e.Company.RegistrationNumber, e.Location.Address, lon, lat,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Employer{}, ErrDuplicatePhone
		}
		return Employer{}, fmt.Errorf("profile: create employer: %w", err)
	}
	return employer, nil
}

func (r *PGRepository) GetEmployer(ctx context.Context, id string) (Employer, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Employer{}, ErrEmployerNotFound
	}
	employer, err := scanEmployer(r.pool.QueryRow(ctx, `SELECT `+employerColumns+` FROM employers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employer{}, ErrEmployerNotFound
		}
		return Employer{}, fmt.Errorf("profile: get employer: %w", err)
	}
	return employer, nil
}

func scanWorker(row pgx.Row) (Worker, error) {
	var (
		w        Worker
		lon, lat *float64
	)
	err := row.Scan(
		&w.ID,
		&w.Name,
		&w.Age,
		&w.Phone,
		&w.PasswordHash,
		&w.Skills,
		&w.Experience,
		&w.Languages,
		&w.Location.Address,
		&lon,
		&lat,
		&w.ShaktiScore,
		&w.IsAvailable,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return Worker{}, err
	}
	w.Location.Point = pointFrom(lon, lat)
	return w, nil
}

func scanEmployer(row pgx.Row) (Employer, error) {
	var (
		e        Employer
		lon, lat *float64
	)
	err := row.Scan(
		&e.ID,
		&e.Name,
		&e.Phone,
		&e.Email,
		&e.PasswordHash,
		&e.Company.Name,
		&e.Company.Description,
		&e.Company.RegistrationNumber,
		&e.Location.Address,
		&lon,
		&lat,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return Employer{}, err
	}
	e.Location.Point = pointFrom(lon, lat)
	return e, nil
}

func pointArgs(loc Location) (any, any) {
	if loc.Point == nil {
		return nil, nil
	}
	return loc.Point.Lon, loc.Point.Lat
}

func pointFrom(lon, lat *float64) *Point {
	if lon == nil || lat == nil {
		return nil
	}
	return &Point{Lon: *lon, Lat: *lat}
}
