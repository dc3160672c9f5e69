// Package ranking re-ranks candidate products with a weighted six-factor
// relevance model: text match, personalization, trending, location,
// seasonality and popularity.
package ranking

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/utafrali/storefront-search/internal/domain"
)

// Points awarded to one query token by the base score.
const (
	titlePrefixPoints   = 1.0
	titleContainsPoints = 0.8
	brandPoints         = 0.7
	categoryPoints      = 0.6
	descriptionPoints   = 0.4

	historyPoints = 0.1
	clickPoints   = 0.05
)

// ClickWindow is how far back clicks count towards personalization.
const ClickWindow = 7 * 24 * time.Hour

// Config controls the optimization pass.
type Config struct {
	Weights    Weights
	MaxResults int
	MinScore   float64
}

func DefaultConfig() Config {
	return Config{
		Weights:    DefaultWeights(),
		MaxResults: 50,
		MinScore:   0.1,
	}
}

// Optimizer scores, filters and orders candidates. It holds no mutable state
// and is safe for concurrent use.
type Optimizer struct {
	cfg Config
}

// New builds an optimizer. Zero MaxResults falls back to the default.
func New(cfg Config) *Optimizer {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig().MaxResults
	}
	return &Optimizer{cfg: cfg}
}

func (o *Optimizer) Config() Config { return o.cfg }

// Optimize returns the candidates scoring at least MinScore, best first, at
// most MaxResults of them. Equal scores are ordered by product ID. The input
// slice is not modified. Given the same inputs the output is always the same;
// the clock is read from sctx.Now only.
func (o *Optimizer) Optimize(query string, results []domain.SearchResult, sctx *domain.SearchContext) []domain.SearchResult {
	if sctx == nil {
		sctx = &domain.SearchContext{}
	}
	scores := o.Score(query, results, sctx)

	ranked := make([]domain.SearchResult, 0, len(results))
	for i, s := range scores {
		if s.Final < o.cfg.MinScore {
			continue
		}
		r := results[i]
		final := s.Final
		breakdown := s.Scores
		r.RelevanceScore = &final
		r.Optimization = &breakdown
		ranked = append(ranked, r)
	}

	slices.SortStableFunc(ranked, func(a, b domain.SearchResult) int {
		if c := cmp.Compare(*b.RelevanceScore, *a.RelevanceScore); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if len(ranked) > o.cfg.MaxResults {
		ranked = ranked[:o.cfg.MaxResults]
	}
	return ranked
}

// Score computes the breakdown of every candidate, in input order.
func (o *Optimizer) Score(query string, results []domain.SearchResult, sctx *domain.SearchContext) []domain.ProductScore {
	in := newInputs(query, results, sctx)
	out := make([]domain.ProductScore, len(results))
	for i := range results {
		p := &results[i].Product
		s := domain.ScoreBreakdown{
			Base:         baseScore(in.tokens, p),
			Personalized: personalizedScore(p, in),
			Trending:     trendingScore(p, in),
			Location:     locationScore(p, in.location),
			Seasonal:     seasonalScore(p, in.keywords),
			Popularity:   popularityScore(p, in.maxSold),
		}
		out[i] = domain.ProductScore{ProductID: p.ID, Scores: s, Final: o.final(s)}
	}
	return out
}

func (o *Optimizer) final(s domain.ScoreBreakdown) float64 {
	w := o.cfg.Weights
	return s.Base*w.Base +
		s.Personalized*w.Personalized +
		s.Trending*w.Trending +
		s.Location*w.Location +
		s.Seasonal*w.Seasonal +
		s.Popularity*w.Popularity
}

// inputs are the per-call values shared by every candidate.
type inputs struct {
	tokens   []string
	query    string
	history  []string
	clicks   map[string]int
	trending map[string]int
	maxTrend int
	location string
	keywords []string
	maxSold  int
}

func newInputs(query string, results []domain.SearchResult, sctx *domain.SearchContext) inputs {
	q := strings.ToLower(strings.TrimSpace(query))
	in := inputs{
		tokens:   strings.Fields(q),
		query:    q,
		location: strings.ToLower(strings.TrimSpace(sctx.UserLocation)),
		trending: make(map[string]int, len(sctx.Trending)),
		clicks:   make(map[string]int),
	}

	for _, h := range sctx.SearchHistory {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			in.history = append(in.history, h)
		}
	}

	if !sctx.Now.IsZero() {
		for _, c := range sctx.Clicks {
			if age := sctx.Now.Sub(c.At); age >= 0 && age <= ClickWindow {
				in.clicks[c.ProductID]++
			}
		}
	}

	for k, v := range sctx.Trending {
		k = strings.ToLower(k)
		in.trending[k] += v
	}
	for _, v := range in.trending {
		in.maxTrend = max(in.maxTrend, v)
	}

	season := sctx.Season
	if season == "" && !sctx.Now.IsZero() {
		season = domain.SeasonOf(sctx.Now)
	}
	in.keywords = seasonKeywords[season]

	for i := range results {
		in.maxSold = max(in.maxSold, results[i].SoldCount)
	}
	return in
}

func baseScore(tokens []string, p *domain.Product) float64 {
	if len(tokens) == 0 {
		return 0
	}
	name := strings.ToLower(p.Name)
	brand := strings.ToLower(p.Brand)
	category := strings.ToLower(p.Category)
	description := strings.ToLower(p.Description)

	var total float64
	for _, t := range tokens {
		switch {
		case strings.HasPrefix(name, t):
			total += titlePrefixPoints
		case strings.Contains(name, t):
			total += titleContainsPoints
		}
		if strings.Contains(brand, t) {
			total += brandPoints
		}
		if strings.Contains(category, t) {
			total += categoryPoints
		}
		if strings.Contains(description, t) {
			total += descriptionPoints
		}
	}
	return clamp(total/float64(len(tokens)), 0, 1)
}

func personalizedScore(p *domain.Product, in inputs) float64 {
	category := strings.ToLower(p.Category)
	brand := strings.ToLower(p.Brand)

	var score float64
	for _, h := range in.history {
		if overlaps(h, category) || overlaps(h, brand) {
			score += historyPoints
		}
	}
	score += clickPoints * float64(in.clicks[p.ID])
	return min(score, PersonalizedCap)
}

// overlaps reports whether either string contains the other.
func overlaps(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func trendingScore(p *domain.Product, in inputs) float64 {
	if in.maxTrend <= 0 {
		return 0
	}
	best := max(
		in.trending[in.query],
		in.trending[strings.ToLower(p.Category)],
		in.trending[strings.ToLower(p.Brand)],
	)
	return min(float64(best)/float64(in.maxTrend), TrendingCap)
}

func locationScore(p *domain.Product, userLocation string) float64 {
	if userLocation == "" {
		return 0
	}
	if strings.Contains(strings.ToLower(p.Location), userLocation) {
		return LocationBoost
	}
	return 0
}

func seasonalScore(p *domain.Product, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	text := strings.ToLower(p.Name + " " + p.Description + " " + p.Category)
	var score float64
	for _, k := range keywords {
		if strings.Contains(text, k) {
			score += SeasonalPoint
		}
	}
	return min(score, SeasonalCap)
}

func popularityScore(p *domain.Product, maxSold int) float64 {
	if maxSold <= 0 {
		return 0
	}
	return min(float64(p.SoldCount)/float64(maxSold), PopularityCap)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
