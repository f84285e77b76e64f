// Package actors drives the marketplace services concurrently for the
// stress suite. Every actor loops until ctx is done or stop is closed.
package actors

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	"gigmatch/job"
	"gigmatch/outbox"
)

// Faults counts unexpected errors seen by actors. Terminated backends make
// some of them unavoidable, so the suite reports them instead of failing.
type Faults struct {
	n    atomic.Int64
	last atomic.Value
}

func (f *Faults) record(err error) {
	f.n.Add(1)
	f.last.Store(err.Error())
}

// Count returns the number of recorded faults and the last message.
func (f *Faults) Count() (int64, string) {
	last, _ := f.last.Load().(string)
	return f.n.Load(), last
}

// expected reports whether err is a domain outcome of racing actors.
func expected(err error) bool {
	return errors.Is(err, job.ErrDuplicateApplication) ||
		errors.Is(err, job.ErrNotOpen) ||
		errors.Is(err, job.ErrJobClosed) ||
		errors.Is(err, job.ErrInvalidTransition) ||
		errors.Is(err, job.ErrIneligible) ||
		errors.Is(err, job.ErrNotCompleted) ||
		errors.Is(err, job.ErrAlreadyPaid) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Posting is a seeded job and the employer that owns it.
type Posting struct {
	JobID      string
	EmployerID string
}

func done(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

func pause(lo, spread int) {
	time.Sleep(time.Duration(lo+rand.Intn(spread)) * time.Millisecond)
}

// Applicant applies random workers to random postings. Repeated pairs must
// collapse to a single application.
func Applicant(ctx context.Context, jobs *job.Service, workerIDs []string, postings []Posting, faults *Faults, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		p := postings[rand.Intn(len(postings))]
		w := workerIDs[rand.Intn(len(workerIDs))]
		if _, err := jobs.Apply(ctx, p.JobID, w); err != nil && !expected(err) {
			faults.record(err)
		}
		pause(5, 20)
	}
	return nil
}

var next = map[job.ApplicationStatus][]job.ApplicationStatus{
	job.ApplicationPending:    {job.ApplicationAccepted, job.ApplicationAccepted, job.ApplicationRejected},
	job.ApplicationAccepted:   {job.ApplicationInProgress},
	job.ApplicationInProgress: {job.ApplicationCompleted},
}

// Employer walks applications of its postings forward through the state
// machine, sometimes with a stale status, and pays completed ones.
func Employer(ctx context.Context, jobs *job.Service, postings []Posting, faults *Faults, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		p := postings[rand.Intn(len(postings))]
		apps, err := jobs.ListApplications(ctx, p.JobID, p.EmployerID)
		if err != nil {
			if !expected(err) {
				faults.record(err)
			}
			pause(20, 30)
			continue
		}
		if len(apps) == 0 {
			pause(10, 20)
			continue
		}

		app := apps[rand.Intn(len(apps))]
		if app.Status == job.ApplicationCompleted {
			_, err = jobs.RecordPayment(ctx, job.PaymentParams{
				JobID:         p.JobID,
				ApplicationID: app.ID,
				EmployerID:    p.EmployerID,
				Amount:        float64(500 + rand.Intn(500)),
			})
		} else if choices := next[app.Status]; len(choices) > 0 {
			_, err = jobs.UpdateApplicationStatus(ctx, job.UpdateStatusParams{
				JobID:         p.JobID,
				ApplicationID: app.ID,
				EmployerID:    p.EmployerID,
				To:            choices[rand.Intn(len(choices))],
			})
		}
		if err != nil && !expected(err) {
			faults.record(err)
		}
		pause(10, 30)
	}
	return nil
}

// Reminder enqueues start reminders alongside the status changes.
func Reminder(ctx context.Context, jobs *job.Service, window time.Duration, faults *Faults, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		if _, err := jobs.EnqueueStartReminders(ctx, window); err != nil && !expected(err) {
			faults.record(err)
		}
		pause(200, 200)
	}
	return nil
}

// Relayer drains the outbox. Several relayers compete for the same rows.
func Relayer(ctx context.Context, relay *outbox.Relay, faults *Faults, stop <-chan struct{}) error {
	for !done(ctx, stop) {
		if _, err := relay.RunOnce(ctx); err != nil && !expected(err) {
			faults.record(err)
		}
		pause(50, 50)
	}
	return nil
}
