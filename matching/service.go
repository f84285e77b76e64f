package matching

import (
	"context"

	"gigmatch/job"
	"gigmatch/profile"
)

// WorkerReader is the Profile Store contract the engine depends on.
type WorkerReader interface {
	GetWorker(ctx context.Context, id string) (profile.Worker, error)
	ListAvailableWorkers(ctx context.Context) ([]profile.Worker, error)
}

// JobReader is the Job Store contract the engine depends on.
type JobReader interface {
	GetJob(ctx context.Context, id string) (job.Job, error)
	ListOpenJobs(ctx context.Context) ([]job.Job, error)
}

// Service combines the stores with the engine. Store errors are returned
// unchanged so callers can map not-found sentinels.
type Service struct {
	engine  *Engine
	workers WorkerReader
	jobs    JobReader
}

func NewService(engine *Engine, workers WorkerReader, jobs JobReader) *Service {
	return &Service{engine: engine, workers: workers, jobs: jobs}
}

// RecommendJobs ranks every open job for the worker.
func (s *Service) RecommendJobs(ctx context.Context, workerID string) ([]Match, error) {
	w, err := s.workers.GetWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	jobs, err := s.jobs.ListOpenJobs(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.Rank(ctx, &w, jobs)
}

// Explain returns the per-dimension breakdown for one (worker, job) pair.
func (s *Service) Explain(ctx context.Context, workerID, jobID string) (Breakdown, error) {
	w, err := s.workers.GetWorker(ctx, workerID)
	if err != nil {
		return Breakdown{}, err
	}
	j, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return Breakdown{}, err
	}
	return s.engine.Breakdown(&w, &j)
}

// CheckEligible loads the worker and applies Eligible.
func (s *Service) CheckEligible(ctx context.Context, workerID string, j job.Job) (bool, error) {
	return NewGate(s.workers).CheckEligible(ctx, workerID, j)
}

// Gate is the eligibility check on its own, for the job service which the
// recommendation Service itself reads from.
type Gate struct {
	workers WorkerReader
}

func NewGate(workers WorkerReader) *Gate {
	return &Gate{workers: workers}
}

// CheckEligible satisfies job.EligibilityChecker.
func (g *Gate) CheckEligible(ctx context.Context, workerID string, j job.Job) (bool, error) {
	w, err := g.workers.GetWorker(ctx, workerID)
	if err != nil {
		return false, err
	}
	return Eligible(w, j), nil
}
