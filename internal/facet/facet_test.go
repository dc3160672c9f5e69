package facet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-search/internal/domain"
	"github.com/utafrali/storefront-search/internal/fixture"
)

func TestGenerate_Fixture(t *testing.T) {
	f := Generate(fixture.Products())

	assert.Equal(t, [2]int64{395_000, 52_990_000}, f.PriceRange)

	require.NotEmpty(t, f.Brands)
	assert.Equal(t, domain.FacetCount{Name: "Apple", Count: 2}, f.Brands[0])

	require.NotEmpty(t, f.Categories)
	assert.Equal(t, domain.FacetCount{Name: "Laptop", Count: 2}, f.Categories[0])

	total := 0
	for _, l := range f.Locations {
		total += l.Count
	}
	assert.Equal(t, 8, total)

	counts := map[string]int{}
	for _, b := range f.PriceBuckets {
		counts[b.Label] = b.Count
	}
	assert.Equal(t, map[string]int{
		"under_1m": 2,
		"1m_5m":    1,
		"5m_10m":   1,
		"10m_20m":  0,
		"over_20m": 4,
	}, counts)
}

func TestGenerate_OrderAndCaseFolding(t *testing.T) {
	products := []domain.Product{
		{ID: "1", Brand: "zeta", Category: "A", Price: 10},
		{ID: "2", Brand: "Alpha", Category: "a", Price: 20},
		{ID: "3", Brand: "alpha", Category: "B", Price: 5},
		{ID: "4", Brand: "", Category: "b ", Price: 7},
		{ID: "5", Brand: "Beta", Category: "C", Price: 30},
	}
	f := Generate(products)

	assert.Equal(t, []domain.FacetCount{
		{Name: "Alpha", Count: 2},
		{Name: "Beta", Count: 1},
		{Name: "zeta", Count: 1},
	}, f.Brands)
	assert.Equal(t, []domain.FacetCount{
		{Name: "A", Count: 2},
		{Name: "B", Count: 2},
		{Name: "C", Count: 1},
	}, f.Categories)
	assert.Equal(t, [2]int64{5, 30}, f.PriceRange)
}

func TestGenerate_Empty(t *testing.T) {
	f := Generate(nil)
	assert.Empty(t, f.Categories)
	assert.NotNil(t, f.Categories)
	assert.Equal(t, [2]int64{0, 0}, f.PriceRange)
	require.Len(t, f.PriceBuckets, 5)
	for _, b := range f.PriceBuckets {
		assert.Zero(t, b.Count)
	}
}

func TestGenerate_DoesNotShareBuckets(t *testing.T) {
	Generate(fixture.Products())
	for _, b := range buckets {
		assert.Zero(t, b.Count)
	}
}
