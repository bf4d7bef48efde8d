// Package scheduler runs the background listening task. It is a small
// registrar over a cron runner: the coordinator registers the background
// segment job when listening is enabled and unregisters it when listening is
// disabled.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/murmur-app/murmur/internal/observe"
)

// MinInterval is the floor for the background task interval. The platform
// never wakes the task more often than this, so configuring anything lower
// is silently raised.
const MinInterval = 15 * time.Minute

// Job is a background task invocation. The context is the scheduler's run
// context and is cancelled on Stop.
type Job func(ctx context.Context)

// Scheduler owns the cron runner for the background segment job. At most one
// job is registered at a time. Safe for concurrent use.
type Scheduler struct {
	cron     *cron.Cron
	interval time.Duration

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entry   cron.EntryID
	started bool
	active  bool
}

// New creates a Scheduler firing at the given interval. Intervals below
// MinInterval are raised to it.
func New(interval time.Duration) *Scheduler {
	if interval < MinInterval {
		interval = MinInterval
	}
	return &Scheduler{
		cron:     cron.New(),
		interval: interval,
	}
}

// Start begins the cron runner. Jobs registered before Start fire once the
// runner is live.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.started = true
}

// Stop halts the cron runner and cancels the context passed to running jobs.
// Blocks until running jobs return or ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.cancel()
	stopped := s.cron.Stop()
	s.mu.Unlock()

	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register installs job to run at the scheduler's interval. Registering
// while a job is already installed replaces it.
func (s *Scheduler) Register(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		s.cron.Remove(s.entry)
		s.active = false
	}

	id, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if ctx == nil || ctx.Err() != nil {
			return
		}
		job(ctx)
	})
	if err != nil {
		return fmt.Errorf("register background job: %w", err)
	}
	s.entry = id
	s.active = true
	observe.Logger(context.Background()).Info("background task registered",
		"interval", s.interval)
	return nil
}

// Unregister removes the background job. A no-op when nothing is registered.
func (s *Scheduler) Unregister() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.cron.Remove(s.entry)
	s.active = false
	observe.Logger(context.Background()).Info("background task unregistered")
}

// Registered reports whether a background job is currently installed.
func (s *Scheduler) Registered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
