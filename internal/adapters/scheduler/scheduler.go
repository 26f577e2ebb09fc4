// Package scheduler runs periodic background jobs on gocron.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/okian/overcall/pkg/logger"
)

// Job is one periodic unit of work.
type Job func(ctx context.Context) error

// Scheduler wraps a gocron scheduler. Jobs never overlap with themselves.
type Scheduler struct {
	mu      sync.Mutex
	sched   gocron.Scheduler
	ctx     context.Context
	cancel  context.CancelFunc
	log     logger.Logger
	started bool
}

// New creates a stopped scheduler.
func New() (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		sched:  sched,
		ctx:    ctx,
		cancel: cancel,
		log:    logger.Named("scheduler"),
	}, nil
}

// Every registers job to run each interval, starting immediately once the
// scheduler starts.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be > 0", name)
	}
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := job(s.ctx); err != nil {
				s.log.Warn(s.ctx, "job failed", logger.String("job", name), logger.Error(err))
			}
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	return nil
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.sched.Start()
	s.started = true
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("shutdown scheduler: %w", err)
	}
	s.started = false
	return nil
}
