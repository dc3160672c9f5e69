// Package cache provides the TTL key/value caches of the search pipeline:
// an in-process map and a Redis-backed store sharing one interface.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/utafrali/storefront-search/internal/metrics"
)

// Cache stores values of type V under string keys until their TTL passes.
// Expired entries are dropped when read, not by a background sweep.
type Cache[V any] interface {
	// Get returns the value stored under key and whether it was found.
	Get(ctx context.Context, key string) (V, bool, error)

	// Set stores v under key for ttl.
	Set(ctx context.Context, key string, v V, ttl time.Duration) error

	// Delete removes key.
	Delete(ctx context.Context, key string) error

	// Clear removes every key of this cache.
	Clear(ctx context.Context) error
}

type uncached[V any] struct{ v V }

func (*uncached[V]) Error() string { return "cache: uncached value" }

// Uncached is returned by a load callback to hand v to every waiting caller
// without storing it, e.g. for a result served by a fallback source.
func Uncached[V any](v V) error {
	return &uncached[V]{v: v}
}

// ReadThrough loads missing values through a callback and stores them.
// Concurrent misses on one key share a single load.
type ReadThrough[V any] struct {
	name   string
	cache  Cache[V]
	ttl    time.Duration
	logger *slog.Logger
	flight singleflight.Group
}

// NewReadThrough wraps c. name labels the cache in metrics and logs.
func NewReadThrough[V any](name string, c Cache[V], ttl time.Duration, logger *slog.Logger) *ReadThrough[V] {
	return &ReadThrough[V]{name: name, cache: c, ttl: ttl, logger: logger}
}

// Get returns the cached value for key or calls load and caches its result.
// Cache errors are logged and treated as misses. A loaded value is written
// even when ctx has been cancelled meanwhile, so a superseded request still
// warms the cache for the next one.
func (r *ReadThrough[V]) Get(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	v, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.WarnContext(ctx, "cache read failed",
			slog.String("cache", r.name),
			slog.String("error", err.Error()),
		)
	}
	metrics.CacheResult(r.name, ok)
	if ok {
		return v, nil
	}

	res, err, shared := r.flight.Do(key, func() (any, error) {
		return r.load(ctx, key, load)
	})
	// The shared load ran under another caller's context. If that caller
	// went away, load again under ours.
	if err != nil && shared && ctx.Err() == nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return r.load(ctx, key, load)
	}
	if err != nil {
		var zero V
		return zero, err
	}
	v, _ = res.(V)
	return v, nil
}

func (r *ReadThrough[V]) load(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	v, err := load(ctx)
	var u *uncached[V]
	if errors.As(err, &u) {
		return u.v, nil
	}
	if err != nil {
		return v, err
	}

	if err := r.cache.Set(context.WithoutCancel(ctx), key, v, r.ttl); err != nil {
		r.logger.WarnContext(ctx, "cache write failed",
			slog.String("cache", r.name),
			slog.String("error", err.Error()),
		)
	}
	return v, nil
}

// Invalidate drops every entry, e.g. after the catalog changed.
func (r *ReadThrough[V]) Invalidate(ctx context.Context) error {
	return r.cache.Clear(ctx)
}
