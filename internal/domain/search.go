package domain

import (
	"slices"
	"time"
)

// Sort options for search results.
const (
	SortRelevance  = "relevance"
	SortPriceAsc   = "price_asc"
	SortPriceDesc  = "price_desc"
	SortRating     = "rating"
	SortNewest     = "newest"
	SortBestseller = "bestseller"
)

// ShippingFree is the shipping option that restricts results to products
// shipped for free.
const ShippingFree = "free_shipping"

// Pagination defaults.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ValidSortOptions returns the list of valid sort options.
func ValidSortOptions() []string {
	return []string{SortRelevance, SortPriceAsc, SortPriceDesc, SortRating, SortNewest, SortBestseller}
}

// IsValidSort checks whether the given sort string is a valid sort option.
func IsValidSort(sort string) bool {
	return slices.Contains(ValidSortOptions(), sort)
}

// SearchQuery is a normalized, validated search request. Nil pointers and
// empty sets impose no constraint.
type SearchQuery struct {
	Query           string   `json:"query"`
	Categories      []string `json:"categories,omitempty"`
	Brands          []string `json:"brands,omitempty"`
	MinPrice        *int64   `json:"min_price,omitempty"`
	MaxPrice        *int64   `json:"max_price,omitempty"`
	MinRating       *float64 `json:"min_rating,omitempty"`
	InStock         *bool    `json:"in_stock,omitempty"`
	Locations       []string `json:"locations,omitempty"`
	ShippingOptions []string `json:"shipping_options,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	SortBy          string   `json:"sort_by"`
	Page            int      `json:"page"`
	Limit           int      `json:"limit"`
}

// FreeShippingOnly reports whether the free-shipping filter is active.
func (q *SearchQuery) FreeShippingOnly() bool {
	return slices.Contains(q.ShippingOptions, ShippingFree)
}

// HasStructuralFilters reports whether any filter besides the query text
// is active.
func (q *SearchQuery) HasStructuralFilters() bool {
	return len(q.Categories) > 0 || len(q.Brands) > 0 ||
		q.MinPrice != nil || q.MaxPrice != nil || q.MinRating != nil ||
		q.InStock != nil || len(q.Locations) > 0 || q.FreeShippingOnly() ||
		len(q.Tags) > 0
}

// TextOnly returns a copy of q keeping only the query text and sort. It
// describes the pre-filter pool facets are computed from.
func (q *SearchQuery) TextOnly() *SearchQuery {
	return &SearchQuery{Query: q.Query, SortBy: q.SortBy, Page: 1, Limit: q.Limit}
}

// CandidateSet is what a search engine returns: every product matching the
// query, sorted, before pagination.
type CandidateSet struct {
	Products []Product
	Total    int
}

// SearchResult is a product projected for presentation. Score fields are set
// only when the relevance pass ran.
type SearchResult struct {
	Product
	RelevanceScore *float64        `json:"relevance_score,omitempty"`
	Optimization   *ScoreBreakdown `json:"optimization,omitempty"`
}

// SearchResponse is the paginated answer to a search.
type SearchResponse struct {
	Items       []SearchResult `json:"items"`
	Total       int            `json:"total"`
	Page        int            `json:"page"`
	Limit       int            `json:"limit"`
	TotalPages  int            `json:"total_pages"`
	Suggestions []string       `json:"suggestions"`
	Facets      Facets         `json:"facets"`
	Degraded    bool           `json:"degraded"`
	TookMs      int64          `json:"took_ms"`
}

// FacetCount is one filter value with the number of products carrying it.
type FacetCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PriceBucket counts products with Min <= price < Max. Max 0 means unbounded.
type PriceBucket struct {
	Label string `json:"label"`
	Min   int64  `json:"min"`
	Max   int64  `json:"max,omitempty"`
	Count int    `json:"count"`
}

// Facets are the filter values available for a query.
type Facets struct {
	Categories   []FacetCount  `json:"categories"`
	Brands       []FacetCount  `json:"brands"`
	Locations    []FacetCount  `json:"locations"`
	PriceRange   [2]int64      `json:"price_range"`
	PriceBuckets []PriceBucket `json:"price_buckets"`
}

// Suggestion types.
const (
	SuggestionProduct  = "product"
	SuggestionCategory = "category"
	SuggestionBrand    = "brand"
)

// Suggestion is one autocomplete entry.
type Suggestion struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Count    int    `json:"count,omitempty"`
	Price    *int64 `json:"price,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Click is a product the shopper opened from a result list.
type Click struct {
	ProductID string    `json:"product_id"`
	At        time.Time `json:"at"`
}
