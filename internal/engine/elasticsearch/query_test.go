package elasticsearch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-search/internal/domain"
)

func roundTrip(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestBuildSearchQuery_MatchAllSortsByName(t *testing.T) {
	q := roundTrip(t, buildSearchQuery(&domain.SearchQuery{SortBy: domain.SortRelevance}, 50))

	assert.EqualValues(t, 50, q["size"])
	boolQuery := q["query"].(map[string]any)["bool"].(map[string]any)
	assert.Contains(t, boolQuery["must"].([]any)[0], "match_all")
	assert.NotContains(t, boolQuery, "filter")

	sort := q["sort"].([]any)
	assert.Contains(t, sort[0], "name.sort")
	assert.Contains(t, sort[1], "id")
}

func TestBuildSearchQuery_TextIsEscapedWildcard(t *testing.T) {
	q := buildSearchQuery(&domain.SearchQuery{Query: "Size*?", SortBy: domain.SortRelevance}, 10)

	must := q["query"].(map[string]any)["bool"].(map[string]any)["must"].([]any)
	should := must[0].(map[string]any)["bool"].(map[string]any)["should"].([]any)
	require.Len(t, should, 4)

	first := should[0].(map[string]any)["wildcard"].(map[string]any)["name.wildcard"].(map[string]any)
	assert.Equal(t, `*size\*\?*`, first["value"])
	assert.Equal(t, true, first["case_insensitive"])

	sort := q["sort"].([]any)
	assert.Contains(t, sort[0], "rating", "query text sorts by rating")
}

func TestBuildFilters(t *testing.T) {
	min, max := int64(100), int64(200)
	rating := 4.0
	inStock := false
	filters := buildFilters(&domain.SearchQuery{
		Categories:      []string{"Laptop"},
		Brands:          []string{"Dell"},
		MinPrice:        &min,
		MaxPrice:        &max,
		MinRating:       &rating,
		InStock:         &inStock,
		Locations:       []string{"Hà Nội"},
		ShippingOptions: []string{domain.ShippingFree},
		Tags:            []string{"ultrabook", "windows"},
	})

	require.Len(t, filters, 9)
	assert.Equal(t, map[string]any{"terms": map[string]any{"category": []string{"Laptop"}}}, filters[0])
	assert.Equal(t, map[string]any{"range": map[string]any{"price": map[string]any{"gte": min, "lte": max}}}, filters[2])
	assert.Equal(t, map[string]any{"term": map[string]any{"free_shipping": true}}, filters[4])
	assert.Equal(t, map[string]any{"term": map[string]any{"in_stock": false}}, filters[5])
	assert.Equal(t, map[string]any{"term": map[string]any{"tags": "windows"}}, filters[8])
}

func TestBuildSort(t *testing.T) {
	tests := map[string]string{
		domain.SortPriceAsc:   "price",
		domain.SortPriceDesc:  "price",
		domain.SortRating:     "rating",
		domain.SortNewest:     "sold_count",
		domain.SortBestseller: "sold_count",
	}
	for sortBy, field := range tests {
		sort := buildSort(&domain.SearchQuery{SortBy: sortBy})
		require.Len(t, sort, 2, sortBy)
		assert.Contains(t, sort[0], field, sortBy)
	}

	asc := buildSort(&domain.SearchQuery{SortBy: domain.SortPriceAsc})[0].(map[string]any)["price"].(map[string]any)
	assert.Equal(t, "asc", asc["order"])
}
