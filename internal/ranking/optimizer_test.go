package ranking

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-search/internal/domain"
	"github.com/utafrali/storefront-search/internal/fixture"
)

const tolerance = 1e-9

var july = time.Date(2026, time.July, 10, 12, 0, 0, 0, time.UTC)

func candidates(products []domain.Product) []domain.SearchResult {
	out := make([]domain.SearchResult, len(products))
	for i, p := range products {
		out[i] = domain.SearchResult{Product: p}
	}
	return out
}

func byID(t *testing.T, id string) domain.Product {
	t.Helper()
	for _, p := range fixture.Products() {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("fixture has no product %s", id)
	return domain.Product{}
}

func richContext() *domain.SearchContext {
	return &domain.SearchContext{
		SessionID:     "s-1",
		UserLocation:  "hà nội",
		SearchHistory: []string{"apple", "laptop", "kem", "điện thoại", "tai nghe", "apple watch"},
		Clicks: []domain.Click{
			{ProductID: "p-001", At: july.Add(-time.Hour)},
			{ProductID: "p-001", At: july.Add(-48 * time.Hour)},
			{ProductID: "p-003", At: july.Add(-30 * 24 * time.Hour)},
		},
		Trending: map[string]int{"iphone": 40, "Laptop": 25, "apple": 10},
		Now:      july,
	}
}

func TestOptimize_IPhoneScenario(t *testing.T) {
	set := []domain.Product{
		byID(t, "p-001"), byID(t, "p-002"), byID(t, "p-004"), byID(t, "p-005"), byID(t, "p-006"),
	}
	// Retrieval keeps only the products containing the query text.
	var matched []domain.Product
	for _, p := range set {
		if p.ID == "p-001" {
			matched = append(matched, p)
		}
	}

	opt := New(DefaultConfig())
	got := opt.Optimize("iPhone", candidates(matched), &domain.SearchContext{Now: july})

	require.Len(t, got, 1)
	assert.Equal(t, "p-001", got[0].ID)
	assert.InDelta(t, 4.8, got[0].Rating, tolerance)
	require.NotNil(t, got[0].RelevanceScore)
	require.NotNil(t, got[0].Optimization)
	assert.Greater(t, *got[0].RelevanceScore, opt.Config().MinScore)
	assert.InDelta(t, 1.0, got[0].Optimization.Base, tolerance)
}

func TestScore_Bounds(t *testing.T) {
	opt := New(DefaultConfig())
	w := DefaultWeights()
	results := candidates(fixture.Products())

	queries := []string{"", "apple", "iphone pro max", "laptop", "chống nắng", "a", "zzz"}
	contexts := []*domain.SearchContext{
		{},
		{Now: july},
		richContext(),
		{Now: time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC), UserLocation: "HCM"},
	}

	for _, q := range queries {
		for _, sctx := range contexts {
			for _, s := range opt.Score(q, results, sctx) {
				b := s.Scores
				assert.GreaterOrEqual(t, b.Base, 0.0)
				assert.LessOrEqual(t, b.Base, 1.0)
				assert.GreaterOrEqual(t, b.Personalized, 0.0)
				assert.LessOrEqual(t, b.Personalized, PersonalizedCap+tolerance)
				assert.GreaterOrEqual(t, b.Trending, 0.0)
				assert.LessOrEqual(t, b.Trending, TrendingCap+tolerance)
				assert.Contains(t, []float64{0, LocationBoost}, b.Location)
				assert.GreaterOrEqual(t, b.Seasonal, 0.0)
				assert.LessOrEqual(t, b.Seasonal, SeasonalCap+tolerance)
				assert.GreaterOrEqual(t, b.Popularity, 0.0)
				assert.LessOrEqual(t, b.Popularity, PopularityCap+tolerance)

				want := b.Base*w.Base + b.Personalized*w.Personalized + b.Trending*w.Trending +
					b.Location*w.Location + b.Seasonal*w.Seasonal + b.Popularity*w.Popularity
				assert.InDelta(t, want, s.Final, tolerance)
				assert.LessOrEqual(t, s.Final, 1.0)
			}
		}
	}
}

func TestOptimize_MonotonicAndAboveFloor(t *testing.T) {
	opt := New(DefaultConfig())
	got := opt.Optimize("apple", candidates(fixture.Products()), richContext())
	require.NotEmpty(t, got)

	for i, r := range got {
		require.NotNil(t, r.RelevanceScore)
		assert.GreaterOrEqual(t, *r.RelevanceScore, opt.Config().MinScore)
		if i > 0 {
			prev := *got[i-1].RelevanceScore
			assert.GreaterOrEqual(t, prev, *r.RelevanceScore)
			if prev == *r.RelevanceScore {
				assert.Less(t, got[i-1].ID, r.ID)
			}
		}
	}
}

func TestOptimize_Deterministic(t *testing.T) {
	opt := New(DefaultConfig())
	results := candidates(fixture.Products())

	first := opt.Optimize("pro", results, richContext())
	second := opt.Optimize("pro", results, richContext())
	assert.Equal(t, first, second)
}

func TestOptimize_DoesNotModifyInput(t *testing.T) {
	results := candidates(fixture.Products())
	New(DefaultConfig()).Optimize("apple", results, richContext())
	for _, r := range results {
		assert.Nil(t, r.RelevanceScore)
		assert.Nil(t, r.Optimization)
	}
}

func TestOptimize_MaxResultsAndFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxResults = 2
	got := New(cfg).Optimize("a", candidates(fixture.Products()), richContext())
	assert.LessOrEqual(t, len(got), 2)

	cfg = DefaultConfig()
	cfg.MinScore = 0.99
	assert.Empty(t, New(cfg).Optimize("apple", candidates(fixture.Products()), richContext()))
}

func TestBaseScore(t *testing.T) {
	iphone := byID(t, "p-001")
	macbook := byID(t, "p-003")

	tests := []struct {
		name  string
		query string
		p     domain.Product
		want  float64
	}{
		{"title prefix", "iphone", iphone, 1.0},
		{"title contains", "max", iphone, 0.8},
		{"title and description", "pro", macbook, 1.0},
		{"brand only", "apple", iphone, 0.7},
		{"category only", "laptop", macbook, 0.6 + 0.4},
		{"averaged over tokens", "iphone zzz", iphone, 0.5},
		{"clamped", "macbook pro", macbook, 1.0},
		{"no match", "samsung", iphone, 0},
		{"empty query", "", iphone, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := baseScore(newInputs(tt.query, nil, &domain.SearchContext{}).tokens, &tt.p)
			assert.InDelta(t, tt.want, got, tolerance)
		})
	}
}

func TestPersonalizedScore(t *testing.T) {
	iphone := byID(t, "p-001")
	macbook := byID(t, "p-003")
	results := candidates([]domain.Product{iphone, macbook})

	in := newInputs("x", results, richContext())
	// History: "apple" and "apple watch" overlap the brand, "điện thoại" the
	// category; two recent clicks add 0.1. Capped at 0.3.
	assert.InDelta(t, PersonalizedCap, personalizedScore(&iphone, in), tolerance)
	// "apple", "apple watch", "laptop"; the 30-day-old click is ignored.
	assert.InDelta(t, PersonalizedCap, personalizedScore(&macbook, in), tolerance)

	in = newInputs("x", results, &domain.SearchContext{
		SearchHistory: []string{"laptop"},
		Clicks:        []domain.Click{{ProductID: "p-003", At: july.Add(-time.Hour)}},
		Now:           july,
	})
	assert.InDelta(t, 0.15, personalizedScore(&macbook, in), tolerance)
	assert.Zero(t, personalizedScore(&iphone, in))
}

func TestTrendingScore(t *testing.T) {
	iphone := byID(t, "p-001")
	macbook := byID(t, "p-003")
	results := candidates([]domain.Product{iphone, macbook})
	sctx := &domain.SearchContext{Trending: map[string]int{"iphone": 40, "Laptop": 4, "apple": 2}}

	in := newInputs("iPhone", results, sctx)
	assert.InDelta(t, TrendingCap, trendingScore(&iphone, in), tolerance)

	// Below the cap the normalized frequency is used as is.
	in = newInputs("macbook", results, sctx)
	assert.InDelta(t, 4.0/40, trendingScore(&macbook, in), tolerance)
	assert.InDelta(t, 2.0/40, trendingScore(&iphone, in), tolerance)

	sctx = &domain.SearchContext{Trending: map[string]int{"iphone": 40, "Laptop": 20}}
	in = newInputs("macbook", results, sctx)
	assert.InDelta(t, TrendingCap, trendingScore(&macbook, in), tolerance, "half the peak is still above the cap")

	in = newInputs("macbook", results, &domain.SearchContext{})
	assert.Zero(t, trendingScore(&macbook, in))
}

func TestLocationScore(t *testing.T) {
	iphone := byID(t, "p-001")
	assert.Equal(t, LocationBoost, locationScore(&iphone, "hà nội"))
	assert.Zero(t, locationScore(&iphone, "đà nẵng"))
	assert.Zero(t, locationScore(&iphone, ""))
}

func TestSeasonalScore(t *testing.T) {
	jacket := byID(t, "p-005")
	sunscreen := byID(t, "p-006")

	winter := SeasonKeywords(domain.SeasonWinter)
	summer := SeasonKeywords(domain.SeasonSummer)

	// "winter", "warm", "jacket" and "áo khoác", capped.
	assert.InDelta(t, SeasonalCap, seasonalScore(&jacket, winter), tolerance)
	assert.Zero(t, seasonalScore(&jacket, summer))
	// "summer", "beach", "sunscreen" and "chống nắng", capped.
	assert.InDelta(t, SeasonalCap, seasonalScore(&sunscreen, summer), tolerance)
	assert.Zero(t, seasonalScore(&sunscreen, nil))
}

func TestSeasonFromClock(t *testing.T) {
	results := candidates([]domain.Product{byID(t, "p-006")})
	in := newInputs("kem", results, &domain.SearchContext{Now: july})
	assert.Equal(t, seasonKeywords[domain.SeasonSummer], in.keywords)

	in = newInputs("kem", results, &domain.SearchContext{Now: july, Season: domain.SeasonWinter})
	assert.Equal(t, seasonKeywords[domain.SeasonWinter], in.keywords)
}

func TestPopularityScore(t *testing.T) {
	results := candidates(fixture.Products())
	in := newInputs("x", results, &domain.SearchContext{})
	require.Equal(t, 8800, in.maxSold)

	sunscreen := byID(t, "p-006")
	dell := byID(t, "p-008")
	assert.InDelta(t, PopularityCap, popularityScore(&sunscreen, in.maxSold), tolerance)
	assert.InDelta(t, 150.0/8800, popularityScore(&dell, in.maxSold), tolerance)
	assert.InDelta(t, PopularityCap, popularityScore(&dell, 300), tolerance)
	assert.Zero(t, popularityScore(&dell, 0))
}

func TestNew_DefaultsMaxResults(t *testing.T) {
	opt := New(Config{Weights: DefaultWeights()})
	assert.Equal(t, 50, opt.Config().MaxResults)
	assert.False(t, math.IsNaN(opt.Config().MinScore))
}
