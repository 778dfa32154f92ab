package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one scheduled run. The context carries the per-run deadline.
type Task func(ctx context.Context) error

// Stats summarizes the runs since the scheduler was created.
type Stats struct {
	Runs     uint64
	Failures uint64
	LastRun  time.Time
	LastErr  error
}

type Option func(*Scheduler)

// WithName tags log entries with the loop's name.
func WithName(name string) Option {
	return func(s *Scheduler) {
		s.logger = s.logger.With(zap.String("scheduler", name))
	}
}

// WithTaskTimeout overrides the per-run deadline derived from the interval.
func WithTaskTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.taskTimeout = timeout
		}
	}
}

// Scheduler runs a task immediately on Start and then on every interval
// until stopped or its context ends. Runs never overlap.
type Scheduler struct {
	logger      *zap.Logger
	interval    time.Duration
	taskTimeout time.Duration
	task        Task

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stats   Stats
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(logger *zap.Logger, interval time.Duration, task Task, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		logger:      logger,
		interval:    interval,
		taskTimeout: defaultTaskTimeout(interval),
		task:        task,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the loop. It returns ErrSchedulerAlreadyRunning if a loop is
// active.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.loop(ctx, s.stopCh, s.doneCh)

	s.logger.Info("Scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the loop and waits for an in-flight run to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	stats := s.Stats()
	s.logger.Info("Scheduler stopped",
		zap.Uint64("runs", stats.Runs),
		zap.Uint64("failures", stats.Failures))
	return nil
}

// IsRunning returns whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Stats returns a snapshot of the run counters.
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)
	defer func() {
		s.mu.Lock()
		// After Stop a newer Start may own the state.
		if s.doneCh == doneCh {
			s.running = false
		}
		s.mu.Unlock()
	}()

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context canceled")
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	start := time.Now()
	err := s.invoke(ctx)

	s.mu.Lock()
	s.stats.Runs++
	s.stats.LastRun = start
	s.stats.LastErr = err
	if err != nil {
		s.stats.Failures++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Task execution failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return
	}
	s.logger.Debug("Task execution completed", zap.Duration("elapsed", time.Since(start)))
}

func (s *Scheduler) invoke(ctx context.Context) (err error) {
	taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
	}()

	return s.task(taskCtx)
}

// defaultTaskTimeout leaves a second of headroom on intervals long enough to
// afford it.
func defaultTaskTimeout(interval time.Duration) time.Duration {
	if interval > 2*time.Second {
		return interval - time.Second
	}
	return interval
}
