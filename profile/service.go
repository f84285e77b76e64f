package profile

import (
	"context"
	"fmt"
	"strings"

	"gigmatch/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// ShaktiScorer computes the job-independent fitness score of a worker.
type ShaktiScorer interface {
	ShaktiScore(w Worker) float64
}

type OutboxWriter interface {
	Enqueue(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Service struct {
	pool        TxBeginner
	repo        Repository
	scorer      ShaktiScorer
	outbox      OutboxWriter
	idGenerator func() string
	hashCost    int
}

func NewService(pool TxBeginner, repo Repository, scorer ShaktiScorer, outbox OutboxWriter) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		scorer:      scorer,
		outbox:      outbox,
		idGenerator: func() string { return uuid.NewString() },
		hashCost:    bcrypt.DefaultCost,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// RegisterWorker validates input, computes the Shakti score and stores the
// worker together with a worker.registered event.
func (s *Service) RegisterWorker(ctx context.Context, in WorkerInput) (Worker, error) {
	if err := validatePassword(in.Password); err != nil {
		return Worker{}, err
	}

	w := Worker{
		ID:          s.idGenerator(),
		Name:        strings.TrimSpace(in.Name),
		Age:         in.Age,
		Phone:       strings.TrimSpace(in.Phone),
		Skills:      NormalizeSet(in.Skills),
		Experience:  in.Experience,
		Languages:   NormalizeSet(in.Languages),
		Location:    normalizeLocation(in.Location),
		IsAvailable: true,
	}
	if in.IsAvailable != nil {
		w.IsAvailable = *in.IsAvailable
	}
	if err := validateWorker(w); err != nil {
		return Worker{}, err
	}
	w.ShaktiScore = s.scorer.ShaktiScore(w)

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return Worker{}, fmt.Errorf("profile: hash password: %w", err)
	}
	w.PasswordHash = string(hash)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Worker{}, fmt.Errorf("profile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.repo.CreateWorker(ctx, tx, w)
	if err != nil {
		return Worker{}, err
	}

	if s.outbox != nil {
		payload := map[string]any{
			"worker_id":    created.ID,
			"name":         created.Name,
			"phone":        created.Phone,
			"shakti_score": created.ShaktiScore,
		}
		if err := s.outbox.Enqueue(ctx, tx, outbox.TopicWorkerRegistered, payload); err != nil {
			return Worker{}, fmt.Errorf("profile: enqueue outbox: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Worker{}, fmt.Errorf("profile: commit tx: %w", err)
	}
	return created, nil
}

// UpdateWorker applies a partial update, re-validates the merged profile and
// recomputes the Shakti score.
func (s *Service) UpdateWorker(ctx context.Context, id string, upd WorkerUpdate) (Worker, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Worker{}, fmt.Errorf("profile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	w, err := s.repo.GetWorkerForUpdate(ctx, tx, id)
	if err != nil {
		return Worker{}, err
	}

	if upd.Name != nil {
		w.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Age != nil {
		w.Age = *upd.Age
	}
	if upd.Skills != nil {
		w.Skills = NormalizeSet(upd.Skills)
	}
	if upd.Experience != nil {
		w.Experience = *upd.Experience
	}
	if upd.Languages != nil {
		w.Languages = NormalizeSet(upd.Languages)
	}
	if upd.Location != nil {
		w.Location = normalizeLocation(*upd.Location)
	}
	if upd.IsAvailable != nil {
		w.IsAvailable = *upd.IsAvailable
	}
	if err := validateWorker(w); err != nil {
		return Worker{}, err
	}
	w.ShaktiScore = s.scorer.ShaktiScore(w)

	updated, err := s.repo.UpdateWorker(ctx, tx, w)
	if err != nil {
		return Worker{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Worker{}, fmt.Errorf("profile: commit tx: %w", err)
	}
	return updated, nil
}

func (s *Service) GetWorker(ctx context.Context, id string) (Worker, error) {
	return s.repo.GetWorker(ctx, id)
}

func (s *Service) ListAvailableWorkers(ctx context.Context) ([]Worker, error) {
	return s.repo.ListAvailableWorkers(ctx)
}

func (s *Service) RegisterEmployer(ctx context.Context, in EmployerInput) (Employer, error) {
	if err := validatePassword(in.Password); err != nil {
		return Employer{}, err
	}

	e := Employer{
		ID:    s.idGenerator(),
		Name:  strings.TrimSpace(in.Name),
		Phone: strings.TrimSpace(in.Phone),
		Email: strings.TrimSpace(in.Email),
		Company: Company{
			Name:               strings.TrimSpace(in.Company.Name),
			Description:        strings.TrimSpace(in.Company.Description),
			RegistrationNumber: strings.TrimSpace(in.Company.RegistrationNumber),
		},
		Location: normalizeLocation(in.Location),
	}
	if err := validateEmployer(e); err != nil {
		return Employer{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return Employer{}, fmt.Errorf("profile: hash password: %w", err)
	}
	e.PasswordHash = string(hash)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Employer{}, fmt.Errorf("profile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.repo.CreateEmployer(ctx, tx, e)
	if err != nil {
		return Employer{}, err
	}

	if s.outbox != nil {
		payload := map[string]any{
			"employer_id": created.ID,
			"name":        created.Name,
			"phone":       created.Phone,
		}
		if err := s.outbox.Enqueue(ctx, tx, outbox.TopicEmployerRegistered, payload); err != nil {
			return Employer{}, fmt.Errorf("profile: enqueue outbox: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Employer{}, fmt.Errorf("profile: commit tx: %w", err)
	}
	return created, nil
}

func (s *Service) GetEmployer(ctx context.Context, id string) (Employer, error) {
	return s.repo.GetEmployer(ctx, id)
}

func normalizeLocation(loc Location) Location {
	out := Location{Address: strings.TrimSpace(loc.Address)}
	if loc.Point != nil {
		p := *loc.Point
		out.Point = &p
	}
	return out
}
