// Package session debounces keystroke-driven queries. Each Session runs at
// most one query at a time: a newer Submit cancels whatever is debouncing or
// in flight, and only the result of the latest submission is delivered.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront-search/internal/metrics"
)

// State of a session.
type State string

const (
	StateIdle       State = "idle"
	StateDebouncing State = "debouncing"
	StateInFlight   State = "in_flight"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed"
)

// Default debounce delays.
const (
	SearchDebounce  = 300 * time.Millisecond
	SuggestDebounce = 150 * time.Millisecond
)

// Result is a delivered outcome. Err is set when the run failed.
type Result[T any] struct {
	Seq   uint64
	Value T
	Err   error
}

// RunFunc performs one submission. It must honour ctx cancellation.
type RunFunc[T any] func(ctx context.Context) (T, error)

// Session coalesces submissions of one kind ("search" or "suggest").
type Session[T any] struct {
	kind     string
	debounce time.Duration
	deliver  func(Result[T])
	logger   *slog.Logger

	parent context.Context

	mu     sync.Mutex
	state  State
	seq    uint64
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool

	// commitMu serializes the latest-check with delivery so a stale result
	// can never land after a newer one.
	commitMu sync.Mutex
	runs     sync.WaitGroup
}

// New creates an idle session. Runs derive their context from ctx; deliver
// receives completed and failed results, never cancelled ones.
func New[T any](ctx context.Context, kind string, debounce time.Duration, deliver func(Result[T]), logger *slog.Logger) *Session[T] {
	return &Session[T]{
		kind:     kind,
		debounce: debounce,
		deliver:  deliver,
		logger:   logger,
		parent:   ctx,
		state:    StateIdle,
	}
}

// Submit schedules run after the debounce delay and returns its sequence
// number. Anything pending or in flight is cancelled. Submit returns 0 once
// the session is closed.
func (s *Session[T]) Submit(run RunFunc[T]) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}
	s.supersede()

	s.seq++
	seq := s.seq
	ctx, cancel := context.WithCancel(s.parent)
	s.cancel = cancel
	s.state = StateDebouncing
	s.timer = time.AfterFunc(s.debounce, func() { s.fire(ctx, seq, run) })
	return seq
}

// supersede stops the pending timer and cancels the in-flight run. Callers
// hold s.mu.
func (s *Session[T]) supersede() {
	if s.timer != nil && s.timer.Stop() {
		metrics.SessionRuns.WithLabelValues(s.kind, string(StateCancelled)).Inc()
	}
	s.timer = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session[T]) fire(ctx context.Context, seq uint64, run RunFunc[T]) {
	s.mu.Lock()
	if s.closed || seq != s.seq || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.state = StateInFlight
	s.runs.Add(1)
	s.mu.Unlock()
	defer s.runs.Done()

	value, err := run(ctx)

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	outcome := s.finish(ctx, seq, err)
	metrics.SessionRuns.WithLabelValues(s.kind, string(outcome)).Inc()
	if outcome == StateCancelled {
		s.logger.Debug("superseded run dropped", slog.String("kind", s.kind), slog.Uint64("seq", seq))
		return
	}
	s.deliver(Result[T]{Seq: seq, Value: value, Err: err})
}

// finish classifies a finished run and records it as the session state when
// it is still the latest.
func (s *Session[T]) finish(ctx context.Context, seq uint64, err error) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	var outcome State
	switch {
	case seq != s.seq || ctx.Err() != nil || errors.Is(err, context.Canceled):
		outcome = StateCancelled
	case err != nil:
		outcome = StateFailed
	default:
		outcome = StateCompleted
	}

	if seq == s.seq && !s.closed {
		s.state = outcome
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		s.timer = nil
	}
	return outcome
}

// Cancel drops the pending or in-flight submission without starting a new one.
func (s *Session[T]) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.state == StateDebouncing || s.state == StateInFlight {
		s.seq++
		s.supersede()
		s.state = StateCancelled
	}
}

// State returns the current state.
func (s *Session[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Seq returns the sequence number of the latest submission.
func (s *Session[T]) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Close cancels outstanding work and waits for running submissions to return.
// Nothing is delivered after Close returns.
func (s *Session[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.seq++
	s.supersede()
	s.mu.Unlock()

	s.runs.Wait()
}
