// Package service holds the search orchestrator: it validates a query,
// retrieves candidates, ranks them, derives facets and assembles the
// paginated response, with suggestions computed alongside.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/storefront-search/internal/analytics"
	"github.com/utafrali/storefront-search/internal/cache"
	"github.com/utafrali/storefront-search/internal/domain"
	"github.com/utafrali/storefront-search/internal/facet"
	"github.com/utafrali/storefront-search/internal/history"
	"github.com/utafrali/storefront-search/internal/metrics"
	"github.com/utafrali/storefront-search/internal/query"
	"github.com/utafrali/storefront-search/internal/ranking"
	"github.com/utafrali/storefront-search/internal/retriever"
	"github.com/utafrali/storefront-search/internal/suggest"
	apperrors "github.com/utafrali/storefront-search/pkg/errors"
	"github.com/utafrali/storefront-search/pkg/httpclient"
	"github.com/utafrali/storefront-search/pkg/pagination"
	"github.com/utafrali/storefront-search/pkg/tracing"
)

// CacheFacets labels the facet cache in metrics.
const CacheFacets = "facets"

// ErrCancelled is returned when the caller gave up on a search, typically
// because a newer query superseded it. It is not a failure.
var ErrCancelled = fmt.Errorf("search cancelled: %w", context.Canceled)

var tracer = tracing.Tracer("github.com/utafrali/storefront-search/internal/service")

// Meta identifies who is searching.
type Meta struct {
	SessionID  string
	UserID     string
	Location   string
	SearchType string
}

// owner is the key history is stored under: the user when known, else the
// session.
func (m Meta) owner() string {
	if m.UserID != "" {
		return m.UserID
	}
	return m.SessionID
}

// Deps are the collaborators of a SearchService.
type Deps struct {
	Retriever  *retriever.Retriever
	Optimizer  *ranking.Optimizer
	Suggest    *suggest.Engine
	History    history.Store
	Analytics  analytics.Sink
	FacetCache cache.Cache[domain.Facets]
	FacetTTL   time.Duration
	// Catalog is the product service client used by Reindex. Nil disables it.
	Catalog    *httpclient.CircuitBreakerClient
	CatalogURL string
	Logger     *slog.Logger
}

// SearchService implements the business logic for search operations.
type SearchService struct {
	retriever  *retriever.Retriever
	optimizer  *ranking.Optimizer
	suggest    *suggest.Engine
	history    history.Store
	analytics  analytics.Sink
	facets     *cache.ReadThrough[domain.Facets]
	catalog    *httpclient.CircuitBreakerClient
	catalogURL string
	logger     *slog.Logger
	now        func() time.Time
}

// NewSearchService creates a new search service.
func NewSearchService(deps Deps) *SearchService {
	sink := deps.Analytics
	if sink == nil {
		sink = analytics.Noop{}
	}
	return &SearchService{
		retriever:  deps.Retriever,
		optimizer:  deps.Optimizer,
		suggest:    deps.Suggest,
		history:    deps.History,
		analytics:  sink,
		facets:     cache.NewReadThrough(CacheFacets, deps.FacetCache, deps.FacetTTL, deps.Logger),
		catalog:    deps.Catalog,
		catalogURL: deps.CatalogURL,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// checkpoint maps a finished context onto the search error taxonomy.
func checkpoint(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return ErrCancelled
	default:
		return apperrors.Unavailable("SEARCH_TIMEOUT", "search timed out", err)
	}
}

// Search validates raw and runs the full pipeline. The context is checked
// between stages; a cancelled search returns ErrCancelled and leaves no
// trace in history, trending or analytics. Suggestions are computed
// concurrently with retrieval and ranking.
func (s *SearchService) Search(ctx context.Context, raw query.Raw, meta Meta) (*domain.SearchResponse, error) {
	start := s.now()
	ctx, span := tracer.Start(ctx, "SearchService.Search")
	defer span.End()

	q, err := query.Normalize(raw)
	if err != nil {
		metrics.SearchRequests.WithLabelValues(metrics.OutcomeInvalid).Inc()
		return nil, err
	}
	span.SetAttributes(
		attribute.String("search.query", q.Query),
		attribute.String("search.sort", q.SortBy),
		attribute.Int("search.page", q.Page),
	)

	resp, err := s.run(ctx, &q, meta, start)
	if err != nil {
		s.countFailure(err)
		tracing.Fail(span, err)
		return nil, err
	}

	switch {
	case resp.Degraded:
		metrics.SearchRequests.WithLabelValues(metrics.OutcomeDegraded).Inc()
	case resp.Total == 0:
		metrics.SearchRequests.WithLabelValues(metrics.OutcomeEmpty).Inc()
	default:
		metrics.SearchRequests.WithLabelValues(metrics.OutcomeOK).Inc()
	}
	metrics.ObserveStage(metrics.StageTotal, start)

	s.commit(ctx, &q, meta, resp)
	return resp, nil
}

func (s *SearchService) countFailure(err error) {
	outcome := metrics.OutcomeUnavailable
	if errors.Is(err, ErrCancelled) {
		outcome = metrics.OutcomeCancelled
	}
	metrics.SearchRequests.WithLabelValues(outcome).Inc()
}

func (s *SearchService) run(ctx context.Context, q *domain.SearchQuery, meta Meta, start time.Time) (*domain.SearchResponse, error) {
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)

	var hints []string
	g.Go(func() error {
		defer metrics.ObserveStage(metrics.StageSuggest, time.Now())
		for _, sg := range s.suggest.Suggest(gctx, q.Query) {
			hints = append(hints, sg.Text)
		}
		return nil
	})

	var resp *domain.SearchResponse
	g.Go(func() error {
		var err error
		resp, err = s.pipeline(gctx, q, meta)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	if resp.Total == 0 {
		resp.Suggestions = s.suggest.Relaxations(ctx, q)
	} else if hints != nil {
		resp.Suggestions = hints
	}
	resp.TookMs = s.now().Sub(start).Milliseconds()
	return resp, nil
}

// pipeline runs retrieve, optimize, facets and pagination in order.
func (s *SearchService) pipeline(ctx context.Context, q *domain.SearchQuery, meta Meta) (*domain.SearchResponse, error) {
	stage := time.Now()
	res, err := s.retriever.Retrieve(ctx, q)
	metrics.ObserveStage(metrics.StageRetrieve, stage)
	if err != nil {
		if cerr := checkpoint(ctx); cerr != nil {
			return nil, cerr
		}
		if errors.Is(err, retriever.ErrUnavailable) {
			return nil, apperrors.Unavailable("SEARCH_UNAVAILABLE", "search is temporarily unavailable, please retry", err)
		}
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	results := make([]domain.SearchResult, len(res.Products))
	for i := range res.Products {
		results[i] = domain.SearchResult{Product: res.Products[i]}
	}

	if q.Query != "" && q.SortBy == domain.SortRelevance {
		stage = time.Now()
		sctx := s.searchContext(ctx, meta)
		results = s.optimizer.Optimize(q.Query, results, sctx)
		metrics.ObserveStage(metrics.StageOptimize, stage)
		if err := checkpoint(ctx); err != nil {
			return nil, err
		}
	}

	stage = time.Now()
	facets := s.facetsFor(ctx, q, res)
	metrics.ObserveStage(metrics.StageFacets, stage)
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	page := pagination.Params{Page: q.Page, Limit: q.Limit}
	return &domain.SearchResponse{
		Items:       pagination.Slice(results, page),
		Total:       len(results),
		Page:        q.Page,
		Limit:       q.Limit,
		TotalPages:  pagination.TotalPages(len(results), q.Limit),
		Suggestions: []string{},
		Facets:      facets,
		Degraded:    res.Degraded,
	}, nil
}

// searchContext gathers the ranking signals of one search. Missing signals
// are left empty.
func (s *SearchService) searchContext(ctx context.Context, meta Meta) *domain.SearchContext {
	now := s.now()
	sctx := &domain.SearchContext{
		SessionID:    meta.SessionID,
		UserID:       meta.UserID,
		UserLocation: meta.Location,
		Season:       domain.SeasonOf(now),
		Now:          now,
		Trending:     s.suggest.Frequencies(ctx),
	}

	if owner := meta.owner(); owner != "" {
		sctx.SearchHistory = s.suggest.History(ctx, owner)
		clicks, err := s.history.Clicks(ctx, owner, now.Add(-ranking.ClickWindow))
		if err != nil {
			s.logger.WarnContext(ctx, "click history unavailable", slog.String("error", err.Error()))
		}
		sctx.Clicks = clicks
	}
	return sctx
}

// facetsFor aggregates the pre-filter pool: products matching the query text
// with every structural filter dropped. When no filter is active that pool is
// the candidate set itself. Pools served by the fallback are not cached.
func (s *SearchService) facetsFor(ctx context.Context, q *domain.SearchQuery, res retriever.Result) domain.Facets {
	if res.Degraded {
		return facet.Generate(res.Products)
	}
	if !q.HasStructuralFilters() {
		f, _ := s.facets.Get(ctx, q.Query, func(context.Context) (domain.Facets, error) {
			return facet.Generate(res.Products), nil
		})
		return f
	}

	f, err := s.facets.Get(ctx, q.Query, func(ctx context.Context) (domain.Facets, error) {
		pool, err := s.retriever.Retrieve(ctx, q.TextOnly())
		if err != nil {
			return domain.Facets{}, err
		}
		if pool.Degraded {
			return domain.Facets{}, retriever.ErrUnavailable
		}
		return facet.Generate(pool.Products), nil
	})
	if err != nil {
		if ctx.Err() == nil {
			s.logger.WarnContext(ctx, "pre-filter facets unavailable, using candidate set", slog.String("error", err.Error()))
		}
		return facet.Generate(res.Products)
	}
	return f
}

// commit records a completed search. It runs detached from ctx so a client
// hanging up after the response was built does not lose the record.
func (s *SearchService) commit(ctx context.Context, q *domain.SearchQuery, meta Meta, resp *domain.SearchResponse) {
	ctx = context.WithoutCancel(ctx)
	if q.Query != "" {
		if owner := meta.owner(); owner != "" {
			s.suggest.SaveHistory(ctx, owner, q.Query)
		}
		s.suggest.RecordSearch(ctx, q.Query)
	}

	searchType := meta.SearchType
	if searchType == "" {
		searchType = analytics.SearchTypeFull
	}
	s.analytics.Track(ctx, analytics.Event{
		Name:         analytics.EventSearch,
		SessionID:    meta.SessionID,
		UserID:       meta.UserID,
		Query:        q.Query,
		ResultsCount: resp.Total,
		Filters:      analytics.FiltersOf(q),
		SearchType:   searchType,
		At:           s.now().UTC(),
	})

	s.logger.DebugContext(ctx, "search executed",
		slog.String("query", q.Query),
		slog.Int("total", resp.Total),
		slog.Bool("degraded", resp.Degraded),
		slog.Int64("took_ms", resp.TookMs),
	)
}
