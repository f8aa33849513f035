// Package refresh runs periodic maintenance jobs for the gate, such as
// refreshing the key set and reloading a revocation file.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gatekeep/go-jwt-gate/core"
)

// Job is a unit of periodic work. The context is cancelled when the
// scheduler stops.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron schedules ("@every 5m", "*/10 * * * *").
// A job never overlaps with its own previous run.
type Scheduler struct {
	cron    *cron.Cron
	logger  core.Logger
	timeout time.Duration

	mu     sync.Mutex
	jobs   map[string]Job
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped scheduler. Each run is bounded by timeout when it
// is positive.
func New(logger core.Logger, timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		timeout: timeout,
		jobs:    make(map[string]Job),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Every registers job under name on spec.
func (s *Scheduler) Every(name, spec string, job Job) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q is already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %q: %w", spec, name, err)
	}
	s.jobs[name] = job
	return nil
}

// RunNow runs the named job once, synchronously.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("job %q is not registered", name)
	}
	return s.run(name, job)
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs, cancels running jobs and waits for them to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(name string, job Job) error {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	err := job(ctx)
	if s.logger != nil {
		if err != nil {
			s.logger.Warn("scheduled job failed", "job", name, "error", err, "duration", time.Since(start))
		} else {
			s.logger.Debug("scheduled job finished", "job", name, "duration", time.Since(start))
		}
	}
	return err
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	if l.logger != nil {
		l.logger.Debug("cron: "+msg, keysAndValues...)
	}
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	if l.logger != nil {
		l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
	}
}
