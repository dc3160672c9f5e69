// Package suggest builds autocomplete entries, trending and recent search
// lists, and query relaxations for searches that found nothing. None of its
// operations report failures: they log and return an empty or static list.
package suggest

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/utafrali/storefront-search/internal/cache"
	"github.com/utafrali/storefront-search/internal/domain"
	"github.com/utafrali/storefront-search/internal/history"
	"github.com/utafrali/storefront-search/internal/retriever"
	"github.com/utafrali/storefront-search/internal/trending"
)

// Cache names, used as metric labels.
const (
	CacheSuggest  = "suggest"
	CacheTrending = "trending"
	CacheTerms    = "terms"
)

const (
	trendingKey = "trending:top"
	termsKey    = "terms:all"
)

// StaticTrending is served when the trending tracker fails or is empty.
var StaticTrending = []string{
	"iphone 15",
	"laptop",
	"tai nghe bluetooth",
	"áo khoác",
	"kem chống nắng",
	"nồi chiên không dầu",
	"samsung galaxy",
	"macbook",
}

// Config bounds the lists the engine returns.
type Config struct {
	MinQueryLength int
	MaxProducts    int
	MaxCategories  int
	MaxBrands      int
	TrendingSize   int
	MaxRelaxations int
	CacheTTL       time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinQueryLength: 2,
		MaxProducts:    5,
		MaxCategories:  3,
		MaxBrands:      3,
		TrendingSize:   10,
		MaxRelaxations: 5,
		CacheTTL:       5 * time.Minute,
	}
}

// Catalog is the product source suggestions are drawn from.
type Catalog interface {
	Retrieve(ctx context.Context, q *domain.SearchQuery) (retriever.Result, error)
	Terms(ctx context.Context) ([]string, error)
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Catalog      Catalog
	Trending     trending.Tracker
	History      history.Store
	SuggestCache cache.Cache[[]domain.Suggestion]
	ListCache    cache.Cache[[]string]
	Logger       *slog.Logger
}

// Engine answers autocomplete, trending and history lookups.
type Engine struct {
	cfg      Config
	catalog  Catalog
	trending trending.Tracker
	history  history.Store
	suggest  *cache.ReadThrough[[]domain.Suggestion]
	trendTop *cache.ReadThrough[[]string]
	terms    *cache.ReadThrough[[]string]
	logger   *slog.Logger
}

func New(cfg Config, deps Deps) *Engine {
	return &Engine{
		cfg:      cfg,
		catalog:  deps.Catalog,
		trending: deps.Trending,
		history:  deps.History,
		suggest:  cache.NewReadThrough(CacheSuggest, deps.SuggestCache, cfg.CacheTTL, deps.Logger),
		trendTop: cache.NewReadThrough(CacheTrending, deps.ListCache, cfg.CacheTTL, deps.Logger),
		terms:    cache.NewReadThrough(CacheTerms, deps.ListCache, cfg.CacheTTL, deps.Logger),
		logger:   deps.Logger,
	}
}

// Active reports whether partial is long enough to be looked up.
func (e *Engine) Active(partial string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(partial)) >= e.cfg.MinQueryLength
}

// Suggest returns product, category and brand entries for partial, in that
// order. Queries shorter than MinQueryLength runes return nothing without
// touching the catalog. Results are cached per literal query text.
func (e *Engine) Suggest(ctx context.Context, partial string) []domain.Suggestion {
	partial = strings.TrimSpace(partial)
	if !e.Active(partial) {
		return []domain.Suggestion{}
	}

	out, err := e.suggest.Get(ctx, partial, func(ctx context.Context) ([]domain.Suggestion, error) {
		res, err := e.catalog.Retrieve(ctx, &domain.SearchQuery{
			Query:  partial,
			SortBy: domain.SortRating,
			Page:   1,
			Limit:  domain.DefaultLimit,
		})
		if err != nil {
			return nil, err
		}
		out := e.build(partial, res.Products)
		if res.Degraded {
			return nil, cache.Uncached(out)
		}
		return out, nil
	})
	if err != nil {
		if ctx.Err() == nil {
			e.logger.WarnContext(ctx, "suggestion lookup failed",
				slog.String("query", partial),
				slog.String("error", err.Error()),
			)
		}
		return []domain.Suggestion{}
	}
	return out
}

// build assembles suggestions from rating-ordered products. Texts are unique
// across all types, compared case-insensitively.
func (e *Engine) build(partial string, products []domain.Product) []domain.Suggestion {
	needle := strings.ToLower(partial)
	seen := make(map[string]struct{})
	out := make([]domain.Suggestion, 0, e.cfg.MaxProducts+e.cfg.MaxCategories+e.cfg.MaxBrands)

	add := func(s domain.Suggestion) bool {
		key := strings.ToLower(s.Text)
		if _, dup := seen[key]; dup || s.Text == "" {
			return false
		}
		seen[key] = struct{}{}
		out = append(out, s)
		return true
	}

	n := 0
	for i := range products {
		if n == e.cfg.MaxProducts {
			break
		}
		p := &products[i]
		price := p.Price
		if add(domain.Suggestion{Type: domain.SuggestionProduct, Text: p.Name, Price: &price, ImageURL: p.ImageURL}) {
			n++
		}
	}

	for _, group := range []struct {
		kind  string
		limit int
		field func(*domain.Product) string
	}{
		{domain.SuggestionCategory, e.cfg.MaxCategories, func(p *domain.Product) string { return p.Category }},
		{domain.SuggestionBrand, e.cfg.MaxBrands, func(p *domain.Product) string { return p.Brand }},
	} {
		counts := make(map[string]int)
		var order []string
		for i := range products {
			v := group.field(&products[i])
			if !strings.Contains(strings.ToLower(v), needle) {
				continue
			}
			if counts[v] == 0 {
				order = append(order, v)
			}
			counts[v]++
		}
		n := 0
		for _, v := range order {
			if n == group.limit {
				break
			}
			if add(domain.Suggestion{Type: group.kind, Text: v, Count: counts[v]}) {
				n++
			}
		}
	}
	return out
}

// Trending returns the most searched terms, or StaticTrending when none are
// known or the tracker fails.
func (e *Engine) Trending(ctx context.Context) []string {
	top, err := e.trendTop.Get(ctx, trendingKey, func(ctx context.Context) ([]string, error) {
		return e.trending.Top(ctx, e.cfg.TrendingSize)
	})
	if err != nil {
		e.logger.WarnContext(ctx, "trending lookup failed, serving static list", slog.String("error", err.Error()))
	}
	if len(top) == 0 {
		return staticTrending(e.cfg.TrendingSize)
	}
	return top
}

func staticTrending(n int) []string {
	out := append([]string(nil), StaticTrending...)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Frequencies returns the trending counts used for ranking. Failures yield
// an empty table.
func (e *Engine) Frequencies(ctx context.Context) map[string]int {
	freq, err := e.trending.Frequencies(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "trending frequencies unavailable", slog.String("error", err.Error()))
		return map[string]int{}
	}
	return freq
}

// RecordSearch counts query towards trending.
func (e *Engine) RecordSearch(ctx context.Context, query string) {
	if err := e.trending.Increment(ctx, query); err != nil {
		e.logger.WarnContext(ctx, "failed to count trending query", slog.String("error", err.Error()))
	}
}

// History returns owner's recent searches, most recent first.
func (e *Engine) History(ctx context.Context, owner string) []string {
	recent, err := e.history.Recent(ctx, owner)
	if err != nil {
		e.logger.WarnContext(ctx, "history lookup failed", slog.String("error", err.Error()))
		return []string{}
	}
	return recent
}

// SaveHistory records query for owner. Failures are logged.
func (e *Engine) SaveHistory(ctx context.Context, owner, query string) {
	if err := e.history.Save(ctx, owner, query); err != nil {
		e.logger.WarnContext(ctx, "failed to save search history", slog.String("error", err.Error()))
	}
}

// ClearHistory forgets owner's recent searches.
func (e *Engine) ClearHistory(ctx context.Context, owner string) error {
	return e.history.Clear(ctx, owner)
}

// Invalidate drops cached suggestions and terms after a catalog change.
func (e *Engine) Invalidate(ctx context.Context) {
	if err := e.suggest.Invalidate(ctx); err != nil {
		e.logger.WarnContext(ctx, "failed to invalidate suggestion cache", slog.String("error", err.Error()))
	}
	if err := e.terms.Invalidate(ctx); err != nil {
		e.logger.WarnContext(ctx, "failed to invalidate terms cache", slog.String("error", err.Error()))
	}
}
