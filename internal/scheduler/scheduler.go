package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked immediately on start and restart, then every interval.
type TickFunc func(ctx context.Context, issued time.Time)

// Options tune scheduler behaviour.
type Options struct {
	Interval time.Duration
}

// Scheduler owns a single cancellable periodic task. Ticks are issued on
// their own goroutines under the Run context, so restarting the timer never
// cancels work that is already in flight.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	parent  context.Context
	tick    TickFunc
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	inflight sync.WaitGroup
	loops    atomic.Int32
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick now and then every interval until ctx is
// cancelled. It waits for issued ticks to return before exiting.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.parent = ctx
	s.tick = tick
	s.running = true
	s.startLocked()
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	s.stopLocked()
	s.running = false
	s.mu.Unlock()

	s.inflight.Wait()
	return ctx.Err()
}

// Restart cancels the pending timer and starts over with an immediate tick.
// It reports false when the scheduler is not running.
func (s *Scheduler) Restart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	s.stopLocked()
	s.startLocked()
	s.logger.Debug().Msg("periodic task restarted")
	return true
}

func (s *Scheduler) startLocked() {
	taskCtx, cancel := context.WithCancel(s.parent)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.loop(taskCtx, s.parent, s.tick, done)
}

// stopLocked waits for the timer loop to exit so two loops never overlap.
func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

func (s *Scheduler) loop(taskCtx, parent context.Context, tick TickFunc, done chan struct{}) {
	s.loops.Add(1)
	defer func() {
		s.loops.Add(-1)
		close(done)
	}()

	s.fire(parent, tick)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-taskCtx.Done():
			return
		case <-ticker.C:
			s.fire(parent, tick)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, tick TickFunc) {
	issued := time.Now()
	s.logger.Debug().Time("issued", issued).Msg("executing scheduled tick")

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		tick(ctx, issued)
	}()
}
