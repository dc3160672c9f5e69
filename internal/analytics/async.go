package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/utafrali/storefront-search/internal/metrics"
)

// DefaultBufferSize is the queue length of an Async sink built with zero.
const DefaultBufferSize = 1024

// publishTimeout bounds one delivery attempt.
const publishTimeout = 5 * time.Second

// Async queues events and publishes them from a background goroutine. When
// the queue is full new events are dropped.
type Async struct {
	pub    Publisher
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// NewAsync starts the delivery goroutine. Call Close to drain it.
func NewAsync(pub Publisher, bufferSize int, logger *slog.Logger) *Async {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	a := &Async{
		pub:    pub,
		logger: logger,
		queue:  make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Track enqueues e. It never blocks.
func (a *Async) Track(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		metrics.AnalyticsDropped.Inc()
		return
	}

	select {
	case a.queue <- e:
	default:
		metrics.AnalyticsDropped.Inc()
		a.logger.WarnContext(ctx, "analytics buffer full, event dropped", slog.String("event", e.Name))
	}
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := a.pub.Publish(ctx, e); err != nil {
			metrics.AnalyticsDropped.Inc()
			a.logger.Warn("analytics publish failed",
				slog.String("event", e.Name),
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}
}

// Close stops accepting events and waits until queued ones are delivered or
// ctx expires.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Sink = (*Async)(nil)
