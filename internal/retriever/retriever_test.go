package retriever

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-search/internal/domain"
	"github.com/utafrali/storefront-search/internal/engine"
	"github.com/utafrali/storefront-search/internal/engine/memory"
	"github.com/utafrali/storefront-search/internal/fixture"
	"github.com/utafrali/storefront-search/pkg/breaker"
	apperrors "github.com/utafrali/storefront-search/pkg/errors"
)

type fakeEngine struct {
	engine.SearchEngine
	calls  atomic.Int32
	search func(ctx context.Context, q *domain.SearchQuery) (*domain.CandidateSet, error)
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Ping(context.Context) error { return nil }

func (f *fakeEngine) Search(ctx context.Context, q *domain.SearchQuery) (*domain.CandidateSet, error) {
	f.calls.Add(1)
	return f.search(ctx, q)
}

func failing(err error) *fakeEngine {
	return &fakeEngine{search: func(context.Context, *domain.SearchQuery) (*domain.CandidateSet, error) {
		return nil, err
	}}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBreaker(name string) breaker.Config {
	cfg := breaker.DefaultConfig(name)
	cfg.MinRequests = 2
	cfg.Timeout = time.Hour
	return cfg
}

func query(text string) *domain.SearchQuery {
	return &domain.SearchQuery{Query: text, SortBy: domain.SortRelevance, Page: 1, Limit: domain.DefaultLimit}
}

func TestRetrieve_Primary(t *testing.T) {
	primary := memory.NewSeeded(fixture.Products())
	r := New(primary, nil, testBreaker(t.Name()), discard())

	res, err := r.Retrieve(context.Background(), query("iphone"))
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "p-001", res.Products[0].ID)
	assert.Equal(t, 1, res.Total)
}

func TestRetrieve_FallbackMarksDegraded(t *testing.T) {
	primary := failing(errors.New("connection refused"))
	r := New(primary, memory.NewSeeded(fixture.Products()), testBreaker(t.Name()), discard())

	res, err := r.Retrieve(context.Background(), query("iphone"))
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "p-001", res.Products[0].ID)
	assert.EqualValues(t, 1, primary.calls.Load())
}

func TestRetrieve_NoFallback(t *testing.T) {
	r := New(failing(errors.New("boom")), nil, testBreaker(t.Name()), discard())

	_, err := r.Retrieve(context.Background(), query("iphone"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestRetrieve_BothFail(t *testing.T) {
	primaryErr := errors.New("primary down")
	fallbackErr := errors.New("fallback down")
	r := New(failing(primaryErr), failing(fallbackErr), testBreaker(t.Name()), discard())

	_, err := r.Retrieve(context.Background(), query("iphone"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, primaryErr)
	assert.ErrorIs(t, err, fallbackErr)
}

func TestRetrieve_CancelledBeforeStart(t *testing.T) {
	primary := failing(errors.New("unused"))
	fallback := failing(errors.New("unused"))
	r := New(primary, fallback, testBreaker(t.Name()), discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Retrieve(ctx, query("iphone"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, primary.calls.Load())
	assert.Zero(t, fallback.calls.Load())
}

func TestRetrieve_CancelledDuringSearchDoesNotFallBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := &fakeEngine{search: func(ctx context.Context, _ *domain.SearchQuery) (*domain.CandidateSet, error) {
		cancel()
		return nil, ctx.Err()
	}}
	fallback := memory.NewSeeded(fixture.Products())
	r := New(primary, fallback, testBreaker(t.Name()), discard())

	_, err := r.Retrieve(ctx, query("iphone"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestRetrieve_CancellationDoesNotTripBreaker(t *testing.T) {
	primary := &fakeEngine{search: func(context.Context, *domain.SearchQuery) (*domain.CandidateSet, error) {
		return nil, context.Canceled
	}}
	r := New(primary, nil, testBreaker(t.Name()), discard())

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _ = r.breaker.Execute(func() (*domain.CandidateSet, error) {
			return primary.Search(ctx, query("x"))
		})
	}
	assert.Equal(t, "closed", r.State())
}

func TestRetrieve_OpenBreakerServesFallback(t *testing.T) {
	primary := failing(errors.New("timeout"))
	r := New(primary, memory.NewSeeded(fixture.Products()), testBreaker(t.Name()), discard())

	for i := 0; i < 3; i++ {
		res, err := r.Retrieve(context.Background(), query("laptop"))
		require.NoError(t, err)
		assert.True(t, res.Degraded)
	}
	assert.Equal(t, "open", r.State())
	// Once open, the primary is no longer called.
	assert.EqualValues(t, 2, primary.calls.Load())
}

type termEngine struct {
	fakeEngine
	terms []string
	err   error
}

func (t *termEngine) Terms(context.Context) ([]string, error) { return t.terms, t.err }

func TestTerms(t *testing.T) {
	fallback := memory.NewSeeded(fixture.Products())

	t.Run("primary", func(t *testing.T) {
		primary := &termEngine{terms: []string{"iPhone"}}
		r := New(primary, fallback, testBreaker(t.Name()), discard())
		terms, err := r.Terms(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"iPhone"}, terms)
	})

	t.Run("primary fails", func(t *testing.T) {
		primary := &termEngine{err: errors.New("down")}
		r := New(primary, fallback, testBreaker(t.Name()), discard())
		terms, err := r.Terms(context.Background())
		require.NoError(t, err)
		assert.Contains(t, terms, "Apple")
	})

	t.Run("no term source", func(t *testing.T) {
		r := New(failing(nil), nil, testBreaker(t.Name()), discard())
		terms, err := r.Terms(context.Background())
		require.NoError(t, err)
		assert.Empty(t, terms)
	})
}
