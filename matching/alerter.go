package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gigmatch/job"
	"gigmatch/outbox"
	"gigmatch/profile"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultAlertThreshold = 0.6
	DefaultAlertLimit     = 50
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	Send(ctx context.Context, to, text string) error
}

// JobAlerter reacts to job.posted by texting the best matching available workers.
type JobAlerter struct {
	engine    *Engine
	workers   WorkerReader
	jobs      JobReader
	sender    SMSSender
	logger    *zap.Logger
	threshold float64
	limit     int
}

func NewJobAlerter(engine *Engine, workers WorkerReader, jobs JobReader, sender SMSSender, logger *zap.Logger) *JobAlerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobAlerter{
		engine:    engine,
		workers:   workers,
		jobs:      jobs,
		sender:    sender,
		logger:    logger.Named("alerts"),
		threshold: DefaultAlertThreshold,
		limit:     DefaultAlertLimit,
	}
}

func (a *JobAlerter) WithThreshold(t float64) *JobAlerter {
	a.threshold = t
	return a
}

func (a *JobAlerter) WithLimit(n int) *JobAlerter {
	if n > 0 {
		a.limit = n
	}
	return a
}

// Candidate is a worker whose score passed the alert threshold.
type Candidate struct {
	Worker profile.Worker
	Score  float64
}

// Candidates scores every available worker against j and returns those at or
// above the threshold, best first, capped at the limit.
func (a *JobAlerter) Candidates(ctx context.Context, j job.Job) ([]Candidate, error) {
	workers, err := a.workers.ListAvailableWorkers(ctx)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(workers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.engine.parallelism)
	for i := range workers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := a.engine.Score(&workers[i], &j)
			scores[i] = s
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(workers))
	for i, w := range workers {
		if scores[i] >= a.threshold {
			out = append(out, Candidate{Worker: w, Score: scores[i]})
		}
	}
	sort.SliceStable(out, func(x, y int) bool { return out[x].Score > out[y].Score })
	if len(out) > a.limit {
		out = out[:a.limit]
	}
	return out, nil
}

// Handle processes a job.posted outbox message. Individual SMS failures are
// logged; only failures to load the job or workers are returned for retry.
func (a *JobAlerter) Handle(ctx context.Context, msg outbox.Message) error {
	jobID := gjson.GetBytes(msg.Payload, "job_id").String()
	if jobID == "" {
		return fmt.Errorf("matching: %s payload without job_id", msg.Topic)
	}

	j, err := a.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			a.logger.Warn("job vanished before alerting", zap.String("job_id", jobID))
			return nil
		}
		return err
	}
	if j.Status != job.StatusOpen {
		return nil
	}

	candidates, err := a.Candidates(ctx, j)
	if err != nil {
		return err
	}

	sent := 0
	for _, c := range candidates {
		if err := a.sender.Send(ctx, c.Worker.Phone, alertText(j, c.Score)); err != nil {
			a.logger.Warn("job alert not delivered",
				zap.String("job_id", j.ID),
				zap.String("worker_id", c.Worker.ID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	a.logger.Info("job alerts sent",
		zap.String("job_id", j.ID),
		zap.Int("candidates", len(candidates)),
		zap.Int("sent", sent),
	)
	return nil
}

func alertText(j job.Job, score float64) string {
	return fmt.Sprintf("GigMatch: new job %q matches your profile (%.0f%%). Wage %.0f/%s. Reply in the app to apply.",
		j.Title, score*100, j.Wage.Amount, wageUnit(j.Wage.Period))
}

func wageUnit(p job.WagePeriod) string {
	switch p {
	case job.WageHourly:
		return "hour"
	case job.WageDaily:
		return "day"
	case job.WageWeekly:
		return "week"
	case job.WageMonthly:
		return "month"
	}
	return string(p)
}
