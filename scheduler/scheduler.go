// Package scheduler runs the periodic background tasks: the outbox relay and
// the start-reminder sweep.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is one unit of periodic work.
type Task func(ctx context.Context) error

type entry struct {
	name string
	spec string
	task Task
}

// Scheduler wraps robfig/cron. Overlapping runs of the same task are skipped
// and panics are recovered.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]entry
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		timeout: time.Minute,
		entries: make(map[string]entry),
		ctx:     context.Background(),
	}
}

// WithTimeout bounds each task run.
func (s *Scheduler) WithTimeout(d time.Duration) *Scheduler {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Add registers task under name with a cron spec such as "@every 10s".
func (s *Scheduler) Add(name, spec string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("scheduler: task %q already registered", name)
	}
	e := entry{name: name, spec: spec, task: task}
	if _, err := s.cron.AddFunc(spec, func() { s.run(e) }); err != nil {
		return fmt.Errorf("scheduler: add %q (%s): %w", name, spec, err)
	}
	s.entries[name] = e
	return nil
}

// Start begins ticking. Tasks receive a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("started", zap.Int("tasks", len(s.entries)))
}

// Stop cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
	s.logger.Info("stopped")
}

// Trigger runs a registered task immediately, outside the schedule.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler: unknown task %q", name)
	}
	return s.exec(e)
}

func (s *Scheduler) run(e entry) {
	_ = s.exec(e)
}

func (s *Scheduler) exec(e entry) error {
	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	err := e.task(ctx)
	if err != nil {
		s.logger.Warn("task failed", zap.String("task", e.name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return err
	}
	s.logger.Debug("task done", zap.String("task", e.name), zap.Duration("took", time.Since(start)))
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
