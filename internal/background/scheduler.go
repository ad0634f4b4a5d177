package background

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const releaseTimeout = 5 * time.Second

// Scheduler runs named jobs on cron schedules. Each run holds a lock from
// the Locker, so overlapping runs (across instances too) are skipped.
type Scheduler struct {
	cron    *cron.Cron
	locker  Locker
	lockTTL time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	jobs   map[string]func(context.Context)
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a Scheduler evaluating schedules in timezone
func NewScheduler(timezone string, locker Locker, lockTTL time.Duration, logger *slog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", timezone, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		locker:  locker,
		lockTTL: lockTTL,
		logger:  logger,
		jobs:    make(map[string]func(context.Context)),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Register adds a job under name on the given five-field cron spec
func (s *Scheduler) Register(spec, name string, job func(context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already registered", name)
	}

	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(s.baseContext(), name) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %q: %w", spec, name, err)
	}

	s.jobs[name] = job
	s.logger.Info("job scheduled", slog.String("job", name), slog.String("spec", spec))
	return nil
}

// Start begins firing jobs. Cancelling ctx cancels running jobs.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop prevents new runs, cancels running ones and waits for them to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// RunOnce runs the named job now if its lock is free and reports whether it ran.
// A panic inside the job is logged and the lock is still released.
func (s *Scheduler) RunOnce(ctx context.Context, name string) bool {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		s.logger.Error("unknown job", slog.String("job", name))
		return false
	}

	release, acquired, err := s.locker.TryLock(ctx, name, s.lockTTL)
	if err != nil {
		s.logger.Error("failed to acquire job lock", slog.String("job", name), slog.Any("error", err))
		return false
	}
	if !acquired {
		s.logger.Info("job already running elsewhere, skipping", slog.String("job", name))
		return false
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			s.logger.Warn("failed to release job lock", slog.String("job", name), slog.Any("error", err))
		}
	}()

	start := time.Now()
	s.logger.Info("job started", slog.String("job", name))

	if panicked := s.safeRun(ctx, name, job); panicked {
		return true
	}

	s.logger.Info("job finished", slog.String("job", name), slog.Duration("took", time.Since(start)))
	return true
}

func (s *Scheduler) safeRun(ctx context.Context, name string, job func(context.Context)) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			s.logger.Error("job panicked", slog.String("job", name), slog.Any("panic", r))
		}
	}()

	job(ctx)
	return false
}
