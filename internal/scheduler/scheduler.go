package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned by Start while a run is active.
var ErrAlreadyRunning = errors.New("scheduler: run already active")

// Clock provides the wait between deferred steps.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// StepFunc performs one step and reports whether the run has finished.
type StepFunc func() (done bool, err error)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock used between deferred steps.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithBaseDelay sets the 1x pause between steps.
func WithBaseDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.base = d
		}
	}
}

// WithLogger sets the logger for step errors.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// Scheduler drives a step function either back-to-back or with a pause between steps.
// At most one run is active; Reset invalidates it so no step runs after Reset returns.
type Scheduler struct {
	mu         sync.Mutex
	base       time.Duration
	clock      Clock
	logger     *slog.Logger
	generation uint64
	active     bool
	cancel     context.CancelFunc
	done       chan struct{}
	lastErr    error
}

// New creates an idle scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		base:   DefaultBaseDelay,
		clock:  realClock{},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// BaseDelay returns the 1x pause between steps.
func (s *Scheduler) BaseDelay() time.Duration {
	return s.base
}

// Start runs step until it reports done, an error occurs, ctx ends or Reset is called.
//
// At max speed every step runs in the caller's goroutine and Start returns when the run
// ends. Below max the first step runs immediately and the rest run from a goroutine after
// speed.Delay(base) each; Start returns after the first step.
func (s *Scheduler) Start(ctx context.Context, speed Speed, step StepFunc) error {
	if !speed.Valid() {
		return &InvalidSpeedError{Value: speed.String()}
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.generation++
	gen := s.generation
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.active = true
	s.cancel = cancel
	s.done = done
	s.lastErr = nil
	s.mu.Unlock()

	if speed.Max() {
		defer close(done)
		for {
			if runCtx.Err() != nil || !s.current(gen) {
				s.finish(gen, nil)
				return nil
			}
			finished, err := step()
			if err != nil || finished {
				s.finish(gen, err)
				return err
			}
		}
	}

	finished, err := step()
	if err != nil || finished {
		s.finish(gen, err)
		close(done)
		return err
	}

	go s.loop(runCtx, gen, speed.Delay(s.base), step, done)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, gen uint64, delay time.Duration, step StepFunc, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			s.finish(gen, nil)
			return
		case <-s.clock.After(delay):
		}

		if ctx.Err() != nil || !s.current(gen) {
			s.finish(gen, nil)
			return
		}

		finished, err := step()
		if err != nil {
			s.logger.Warn("scheduled step failed", "generation", gen, "error", err)
			s.finish(gen, err)
			return
		}
		if finished {
			s.finish(gen, nil)
			return
		}
	}
}

func (s *Scheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen && s.active
}

func (s *Scheduler) finish(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return
	}
	s.active = false
	s.lastErr = err
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Reset invalidates the active run and waits for its loop to exit.
// It must not be called from inside a StepFunc. With no active run it is a no-op.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.generation++
	s.active = false
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Wait blocks until the current run, if any, has exited.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether a run is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Generation returns the current run generation; it changes on every Start and Reset.
func (s *Scheduler) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Err returns the error that ended the last run, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
