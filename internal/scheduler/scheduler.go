// Package scheduler runs periodic maintenance on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one named maintenance task
type Job struct {
	Name string
	// Spec is a six-field cron expression (seconds first)
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Recorder receives the result of each run
type Recorder interface {
	JobRun(job string, err error)
}

// Scheduler owns the cron runner and the registered jobs
type Scheduler struct {
	cron     *cron.Cron
	logger   *slog.Logger
	recorder Recorder

	mu   sync.Mutex
	jobs map[string]Job
}

// New creates a Scheduler. recorder may be nil.
func New(logger *slog.Logger, recorder Recorder) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger,
		recorder: recorder,
		jobs:     make(map[string]Job),
	}
}

// Add registers a job. It must be called before Start.
func (s *Scheduler) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.execute(context.Background(), job) }); err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name, err)
	}
	s.jobs[job.Name] = job
	return nil
}

// Start begins running jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop halts the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

// Trigger runs the named job immediately
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.execute(ctx, job)
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := job.Run(ctx)
	if s.recorder != nil {
		s.recorder.JobRun(job.Name, err)
	}
	if err != nil {
		s.logger.Error("job failed", "job", job.Name, "error", err)
		return err
	}
	s.logger.Debug("job finished", "job", job.Name, "elapsed", time.Since(start))
	return nil
}
