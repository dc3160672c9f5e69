// Package retriever fetches candidate products from the primary search
// engine and falls back to the built-in catalog when it fails.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/storefront-search/internal/domain"
	"github.com/utafrali/storefront-search/internal/engine"
	"github.com/utafrali/storefront-search/internal/metrics"
	"github.com/utafrali/storefront-search/pkg/breaker"
	apperrors "github.com/utafrali/storefront-search/pkg/errors"
)

// ErrUnavailable is returned when neither the primary engine nor the
// fallback catalog could answer.
var ErrUnavailable = fmt.Errorf("search unavailable: %w", apperrors.ErrServiceUnavail)

// Result is a candidate set plus where it came from.
type Result struct {
	domain.CandidateSet
	// Degraded is set when the fallback catalog answered.
	Degraded bool
}

// Retriever guards the primary engine with a circuit breaker. Each call makes
// exactly one attempt against the primary before falling back.
type Retriever struct {
	primary  engine.SearchEngine
	fallback engine.SearchEngine
	breaker  *gobreaker.CircuitBreaker[*domain.CandidateSet]
	logger   *slog.Logger
}

// New builds a retriever. A nil fallback means failures are surfaced as
// ErrUnavailable straight away.
func New(primary, fallback engine.SearchEngine, cfg breaker.Config, logger *slog.Logger) *Retriever {
	return &Retriever{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker.New[*domain.CandidateSet](cfg, logger, countsAsSuccess),
		logger:   logger,
	}
}

// A caller going away says nothing about the engine's health.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// Primary returns the engine catalog writes go to.
func (r *Retriever) Primary() engine.SearchEngine {
	return r.primary
}

// Retrieve returns every product matching q in q's sort order. Cancellation
// of ctx is returned as ctx.Err() and never triggers the fallback.
func (r *Retriever) Retrieve(ctx context.Context, q *domain.SearchQuery) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	set, err := r.breaker.Execute(func() (*domain.CandidateSet, error) {
		return r.primary.Search(ctx, q)
	})
	if err == nil {
		return Result{CandidateSet: *set}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	if r.fallback == nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	r.logger.WarnContext(ctx, "primary search engine failed, serving fallback catalog",
		slog.String("engine", r.primary.Name()),
		slog.String("error", err.Error()),
	)
	metrics.Fallbacks.WithLabelValues(r.primary.Name()).Inc()
	breaker.FallbackTotal.WithLabelValues(r.primary.Name()).Inc()

	set, fbErr := r.fallback.Search(ctx, q)
	if fbErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(err, fbErr))
	}
	return Result{CandidateSet: *set, Degraded: true}, nil
}

// Terms returns the did-you-mean vocabulary from the primary engine, or from
// the fallback when the primary cannot list terms.
func (r *Retriever) Terms(ctx context.Context) ([]string, error) {
	var errs []error
	for _, eng := range []engine.SearchEngine{r.primary, r.fallback} {
		src, ok := eng.(engine.TermSource)
		if !ok || eng == nil {
			continue
		}
		terms, err := src.Terms(ctx)
		if err == nil {
			return terms, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, nil
	}
	return nil, fmt.Errorf("list terms: %w", errors.Join(errs...))
}

// Ping checks the primary engine.
func (r *Retriever) Ping(ctx context.Context) error {
	return r.primary.Ping(ctx)
}

// State reports the breaker state, for health output.
func (r *Retriever) State() string {
	return r.breaker.State().String()
}
