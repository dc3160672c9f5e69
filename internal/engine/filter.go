package engine

import (
	"cmp"
	"slices"
	"strings"

	"github.com/utafrali/storefront-search/internal/domain"
)

// Matches reports whether p satisfies every active constraint of q. Filters
// are applied in a fixed order: text, category, brand, price, rating,
// shipping, stock, location, tags.
func Matches(p *domain.Product, q *domain.SearchQuery) bool {
	if needle := strings.ToLower(q.Query); needle != "" && !MatchesText(p, needle) {
		return false
	}
	if len(q.Categories) > 0 && !containsFold(q.Categories, p.Category) {
		return false
	}
	if len(q.Brands) > 0 && !containsFold(q.Brands, p.Brand) {
		return false
	}
	if q.MinPrice != nil && p.Price < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && p.Price > *q.MaxPrice {
		return false
	}
	if q.MinRating != nil && p.Rating < *q.MinRating {
		return false
	}
	if q.FreeShippingOnly() && !p.FreeShipping {
		return false
	}
	if q.InStock != nil && p.InStock != *q.InStock {
		return false
	}
	if len(q.Locations) > 0 && !containsFold(q.Locations, p.Location) {
		return false
	}
	for _, tag := range q.Tags {
		if !containsFold(p.Tags, tag) {
			return false
		}
	}
	return true
}

// MatchesText is a case-insensitive substring test against name,
// description, category and brand. needle must already be lower-cased.
func MatchesText(p *domain.Product, needle string) bool {
	return strings.Contains(strings.ToLower(p.Name), needle) ||
		strings.Contains(strings.ToLower(p.Description), needle) ||
		strings.Contains(strings.ToLower(p.Category), needle) ||
		strings.Contains(strings.ToLower(p.Brand), needle)
}

func containsFold(set []string, v string) bool {
	return slices.ContainsFunc(set, func(s string) bool { return strings.EqualFold(s, v) })
}

// Sort orders products in place. Relevance means rating descending when
// there is query text and name ascending otherwise. Newest uses sold count as
// a recency proxy. Ties fall back to product ID so output is deterministic.
func Sort(products []domain.Product, sortBy string, hasQuery bool) {
	slices.SortStableFunc(products, func(a, b domain.Product) int {
		if c := compareBy(&a, &b, sortBy, hasQuery); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func compareBy(a, b *domain.Product, sortBy string, hasQuery bool) int {
	switch sortBy {
	case domain.SortPriceAsc:
		return cmp.Compare(a.Price, b.Price)
	case domain.SortPriceDesc:
		return cmp.Compare(b.Price, a.Price)
	case domain.SortRating:
		return cmp.Compare(b.Rating, a.Rating)
	case domain.SortNewest, domain.SortBestseller:
		return cmp.Compare(b.SoldCount, a.SoldCount)
	default:
		if hasQuery {
			return cmp.Compare(b.Rating, a.Rating)
		}
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	}
}
