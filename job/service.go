package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gigmatch/outbox"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	// ErrInvalidTransition signals a status change not allowed by the state machine.
	ErrInvalidTransition = errors.New("job: invalid application status transition")
	// ErrIneligible signals that the worker fails the hard eligibility gate.
	ErrIneligible = errors.New("job: worker is not eligible for this job")
	// ErrNotOpen signals an application to a job that no longer accepts them.
	ErrNotOpen = errors.New("job: job is not open for applications")
	// ErrNotOwner signals that the acting employer does not own the job.
	ErrNotOwner = errors.New("job: job not owned by employer")
	// ErrNotCompleted signals a payment for an application that is not completed.
	ErrNotCompleted = errors.New("job: application is not completed")
	// ErrAlreadyPaid signals a second payment for the same application.
	ErrAlreadyPaid = errors.New("job: application already paid")
	// ErrJobClosed signals that a completed job takes on no more work.
	ErrJobClosed = errors.New("job: job is completed")
)

// EligibilityChecker is the hard gate consulted before accepting a worker.
type EligibilityChecker interface {
	CheckEligible(ctx context.Context, workerID string, j Job) (bool, error)
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
	gate        EligibilityChecker
	outbox      OutboxWriter
	idGenerator func() string
	now         func() time.Time
}

func NewService(pool TxBeginner, repo Repository, gate EligibilityChecker, outbox OutboxWriter) *Service {
	return &Service{
		pool:        pool,
		repo:        repo,
		gate:        gate,
		outbox:      outbox,
		idGenerator: func() string { return uuid.NewString() },
		now:         time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// PostJob validates and stores a new open job and enqueues job.posted.
func (s *Service) PostJob(ctx context.Context, employerID string, in JobInput) (Job, error) {
	if employerID == "" {
		return Job{}, invalid("employer", "is required")
	}
	j, err := buildJob(in, s.now())
	if err != nil {
		return Job{}, err
	}
	j.ID = s.idGenerator()
	j.EmployerID = employerID

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Job{}, fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.repo.CreateJob(ctx, tx, j)
	if err != nil {
		return Job{}, err
	}

	if s.outbox != nil {
		payload := map[string]any{
			"job_id":      created.ID,
			"employer_id": created.EmployerID,
			"title":       created.Title,
		}
		if err := s.outbox.Enqueue(ctx, tx, outbox.TopicJobPosted, payload); err != nil {
			return Job{}, fmt.Errorf("job: enqueue outbox: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Job{}, fmt.Errorf("job: commit tx: %w", err)
	}
	return created, nil
}

func (s *Service) GetJob(ctx context.Context, id string) (Job, error) {
	return s.repo.GetJob(ctx, id)
}

// ListOpenJobs returns every open job, oldest first.
func (s *Service) ListOpenJobs(ctx context.Context) ([]Job, error) {
	return s.repo.ListJobs(ctx, Filter{Status: StatusOpen})
}

func (s *Service) ListJobs(ctx context.Context, filter Filter) ([]Job, error) {
	return s.repo.ListJobs(ctx, filter)
}

// Apply creates a pending application of workerID to an open job.
func (s *Service) Apply(ctx context.Context, jobID, workerID string) (Application, error) {
	if workerID == "" {
		return Application{}, invalid("worker", "is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Application{}, fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.repo.GetJobForUpdate(ctx, tx, jobID)
	if err != nil {
		return Application{}, err
	}
	if j.Status != StatusOpen {
		return Application{}, ErrNotOpen
	}

	at := s.now().UTC()
	app, err := s.repo.CreateApplication(ctx, tx, Application{
		ID:            s.idGenerator(),
		JobID:         j.ID,
		WorkerID:      workerID,
		Status:        ApplicationPending,
		AppliedAt:     at,
		PaymentStatus: PaymentUnpaid,
		History:       []HistoryEntry{{To: ApplicationPending, At: at, Actor: workerID}},
	})
	if err != nil {
		return Application{}, err
	}

	if err := s.enqueue(ctx, tx, outbox.TopicApplicationSubmitted, app, nil); err != nil {
		return Application{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Application{}, fmt.Errorf("job: commit tx: %w", err)
	}
	return app, nil
}

// UpdateStatusParams identifies a status change requested by an employer.
type UpdateStatusParams struct {
	JobID         string
	ApplicationID string
	// EmployerID, when set, must own the job.
	EmployerID string
	To         ApplicationStatus
}

// UpdateApplicationStatus moves an application along the state machine.
// Accepting consults the eligibility gate. Starting work moves the job to
// in-progress; completing the last active application completes the job.
func (s *Service) UpdateApplicationStatus(ctx context.Context, params UpdateStatusParams) (Application, error) {
	to, err := ParseApplicationStatus(string(params.To))
	if err != nil {
		return Application{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Application{}, fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.repo.GetJobForUpdate(ctx, tx, params.JobID)
	if err != nil {
		return Application{}, err
	}
	if params.EmployerID != "" && j.EmployerID != params.EmployerID {
		return Application{}, ErrNotOwner
	}

	app, err := s.repo.GetApplicationForUpdate(ctx, tx, params.ApplicationID)
	if err != nil {
		return Application{}, err
	}
	if app.JobID != j.ID {
		return Application{}, ErrApplicationNotFound
	}

	from := app.Status
	if !IsTransitionAllowed(from, to) {
		return Application{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	// only closing moves are left once the job is done
	if j.Status == StatusCompleted && !IsTerminal(to) {
		return Application{}, fmt.Errorf("%w: cannot move application to %s", ErrJobClosed, to)
	}

	if to == ApplicationAccepted {
		if s.gate == nil {
			return Application{}, fmt.Errorf("job: no eligibility checker configured")
		}
		ok, err := s.gate.CheckEligible(ctx, app.WorkerID, j)
		if err != nil {
			return Application{}, err
		}
		if !ok {
			return Application{}, ErrIneligible
		}
	}

	actor := params.EmployerID
	if actor == "" {
		actor = j.EmployerID
	}
	at := s.now().UTC()
	updated, err := s.repo.UpdateApplicationStatus(ctx, tx, app.ID, to, HistoryEntry{
		From:  from,
		To:    to,
		At:    at,
		Actor: actor,
	})
	if err != nil {
		return Application{}, err
	}

	if err := s.syncJobStatus(ctx, tx, j, to, HistoryEntry{At: at, Actor: actor}); err != nil {
		return Application{}, err
	}

	extra := map[string]any{"from": string(from), "to": string(to)}
	if err := s.enqueue(ctx, tx, outbox.TopicApplicationStatusChanged, updated, extra); err != nil {
		return Application{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Application{}, fmt.Errorf("job: commit tx: %w", err)
	}
	return updated, nil
}

// syncJobStatus moves the job along with its applications. Completing a job
// rejects the applications still pending on it; stamp carries the time and
// actor recorded in their history.
func (s *Service) syncJobStatus(ctx context.Context, tx pgx.Tx, j Job, to ApplicationStatus, stamp HistoryEntry) error {
	switch {
	case to == ApplicationInProgress && j.Status == StatusOpen:
		_, err := s.repo.UpdateJobStatus(ctx, tx, j.ID, StatusInProgress)
		return err
	case to == ApplicationCompleted && j.Status == StatusInProgress:
		active, err := s.repo.CountActiveApplications(ctx, tx, j.ID)
		if err != nil {
			return err
		}
		if active > 0 {
			return nil
		}
		if _, err := s.repo.UpdateJobStatus(ctx, tx, j.ID, StatusCompleted); err != nil {
			return err
		}
		rejected, err := s.repo.RejectPendingApplications(ctx, tx, j.ID, HistoryEntry{
			From:  ApplicationPending,
			To:    ApplicationRejected,
			At:    stamp.At,
			Actor: stamp.Actor,
		})
		if err != nil {
			return err
		}
		extra := map[string]any{"from": string(ApplicationPending), "to": string(ApplicationRejected)}
		for _, app := range rejected {
			if err := s.enqueue(ctx, tx, outbox.TopicApplicationStatusChanged, app, extra); err != nil {
				return err
			}
		}
	}
	return nil
}

// PaymentParams records an off-platform payment for a completed application.
type PaymentParams struct {
	JobID         string
	ApplicationID string
	EmployerID    string
	Amount        float64
}

func (s *Service) RecordPayment(ctx context.Context, params PaymentParams) (Application, error) {
	if params.Amount <= 0 {
		return Application{}, invalid("amount", "must be greater than zero")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Application{}, fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	j, err := s.repo.GetJobForUpdate(ctx, tx, params.JobID)
	if err != nil {
		return Application{}, err
	}
	if params.EmployerID != "" && j.EmployerID != params.EmployerID {
		return Application{}, ErrNotOwner
	}
	app, err := s.repo.GetApplicationForUpdate(ctx, tx, params.ApplicationID)
	if err != nil {
		return Application{}, err
	}
	if app.JobID != j.ID {
		return Application{}, ErrApplicationNotFound
	}
	if app.Status != ApplicationCompleted {
		return Application{}, ErrNotCompleted
	}
	if app.PaymentStatus == PaymentPaid {
		return Application{}, ErrAlreadyPaid
	}

	paid, err := s.repo.RecordPayment(ctx, tx, app.ID, params.Amount, s.now().UTC())
	if err != nil {
		return Application{}, err
	}

	extra := map[string]any{"amount": params.Amount}
	if err := s.enqueue(ctx, tx, outbox.TopicApplicationPaid, paid, extra); err != nil {
		return Application{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Application{}, fmt.Errorf("job: commit tx: %w", err)
	}
	return paid, nil
}

// ListApplications returns a job's applications in application order.
// A non-empty employerID must own the job.
func (s *Service) ListApplications(ctx context.Context, jobID, employerID string) ([]Application, error) {
	j, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if employerID != "" && j.EmployerID != employerID {
		return nil, ErrNotOwner
	}
	return s.repo.ListApplicationsByJob(ctx, j.ID)
}

func (s *Service) ListWorkerApplications(ctx context.Context, workerID string) ([]Application, error) {
	return s.repo.ListApplicationsByWorker(ctx, workerID)
}

// DefaultReminderBatch bounds one reminder sweep.
const DefaultReminderBatch = 200

// EnqueueStartReminders enqueues application.reminder for accepted
// applications whose job starts within window. Each application is reminded once.
func (s *Service) EnqueueStartReminders(ctx context.Context, window time.Duration) (int, error) {
	if window <= 0 {
		return 0, invalid("window", "must be positive")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("job: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	now := s.now().UTC()
	apps, err := s.repo.ClaimDueReminders(ctx, tx, now, now.Add(window), DefaultReminderBatch)
	if err != nil {
		return 0, err
	}
	for _, app := range apps {
		if err := s.enqueue(ctx, tx, outbox.TopicApplicationReminder, app, nil); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("job: commit tx: %w", err)
	}
	return len(apps), nil
}

// enqueue writes an application event carrying the contact details
// notification handlers need.
func (s *Service) enqueue(ctx context.Context, tx pgx.Tx, topic string, app Application, extra map[string]any) error {
	if s.outbox == nil {
		return nil
	}
	contacts, err := s.repo.ApplicationContacts(ctx, tx, app.ID)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"application_id": app.ID,
		"job_id":         app.JobID,
		"worker_id":      app.WorkerID,
		"status":         string(app.Status),
		"job_title":      contacts.JobTitle,
		"start_date":     contacts.StartDate.UTC(),
		"worker_name":    contacts.WorkerName,
		"worker_phone":   contacts.WorkerPhone,
		"employer_name":  contacts.EmployerName,
		"employer_phone": contacts.EmployerPhone,
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := s.outbox.Enqueue(ctx, tx, topic, payload); err != nil {
		return fmt.Errorf("job: enqueue outbox: %w", err)
	}
	return nil
}
