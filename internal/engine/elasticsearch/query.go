package elasticsearch

import (
	"strings"

	"github.com/utafrali/storefront-search/internal/domain"
)

// textFields are matched by substring, mirroring engine.MatchesText.
var textFields = []string{"name.wildcard", "description.wildcard", "category.wildcard", "brand.wildcard"}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

// buildSearchQuery constructs the query DSL for q. Every match is fetched,
// up to size documents.
func buildSearchQuery(q *domain.SearchQuery, size int) map[string]any {
	boolQuery := map[string]any{}

	if q.Query != "" {
		pattern := "*" + wildcardEscaper.Replace(strings.ToLower(q.Query)) + "*"
		should := make([]any, 0, len(textFields))
		for _, f := range textFields {
			should = append(should, map[string]any{
				"wildcard": map[string]any{
					f: map[string]any{"value": pattern, "case_insensitive": true},
				},
			})
		}
		boolQuery["must"] = []any{
			map[string]any{"bool": map[string]any{"should": should, "minimum_should_match": 1}},
		}
	} else {
		boolQuery["must"] = []any{map[string]any{"match_all": map[string]any{}}}
	}

	if filters := buildFilters(q); len(filters) > 0 {
		boolQuery["filter"] = filters
	}

	return map[string]any{
		"query":            map[string]any{"bool": boolQuery},
		"size":             size,
		"sort":             buildSort(q),
		"track_total_hits": true,
	}
}

// buildFilters mirrors engine.Matches. Keyword fields are lower-case
// normalized so terms match regardless of case.
func buildFilters(q *domain.SearchQuery) []any {
	var filters []any

	terms := func(field string, values []string) {
		filters = append(filters, map[string]any{"terms": map[string]any{field: values}})
	}
	term := func(field string, value any) {
		filters = append(filters, map[string]any{"term": map[string]any{field: value}})
	}

	if len(q.Categories) > 0 {
		terms("category", q.Categories)
	}
	if len(q.Brands) > 0 {
		terms("brand", q.Brands)
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		r := map[string]any{}
		if q.MinPrice != nil {
			r["gte"] = *q.MinPrice
		}
		if q.MaxPrice != nil {
			r["lte"] = *q.MaxPrice
		}
		filters = append(filters, map[string]any{"range": map[string]any{"price": r}})
	}
	if q.MinRating != nil {
		filters = append(filters, map[string]any{"range": map[string]any{"rating": map[string]any{"gte": *q.MinRating}}})
	}
	if q.FreeShippingOnly() {
		term("free_shipping", true)
	}
	if q.InStock != nil {
		term("in_stock", *q.InStock)
	}
	if len(q.Locations) > 0 {
		terms("location", q.Locations)
	}
	for _, tag := range q.Tags {
		term("tags", tag)
	}

	return filters
}

// buildSort mirrors engine.Sort, with id as the final tie-breaker.
func buildSort(q *domain.SearchQuery) []any {
	field := func(name, order string) map[string]any {
		return map[string]any{name: map[string]any{"order": order}}
	}
	tieBreak := field("id", "asc")

	switch q.SortBy {
	case domain.SortPriceAsc:
		return []any{field("price", "asc"), tieBreak}
	case domain.SortPriceDesc:
		return []any{field("price", "desc"), tieBreak}
	case domain.SortRating:
		return []any{field("rating", "desc"), tieBreak}
	case domain.SortNewest, domain.SortBestseller:
		return []any{field("sold_count", "desc"), tieBreak}
	default:
		if q.Query != "" {
			return []any{field("rating", "desc"), tieBreak}
		}
		return []any{field("name.sort", "asc"), tieBreak}
	}
}

// buildTermsQuery aggregates distinct names, categories and brands.
func buildTermsQuery(size int) map[string]any {
	agg := func(field string) map[string]any {
		return map[string]any{"terms": map[string]any{"field": field, "size": size}}
	}
	return map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"names":      agg("name.raw"),
			"categories": agg("category.raw"),
			"brands":     agg("brand.raw"),
		},
	}
}
