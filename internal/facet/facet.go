// Package facet derives the filter values available for a candidate pool.
package facet

import (
	"cmp"
	"slices"
	"strings"

	"github.com/utafrali/storefront-search/internal/domain"
)

// bucket bounds in VND. The last bucket has no upper bound.
var buckets = []domain.PriceBucket{
	{Label: "under_1m", Min: 0, Max: 1_000_000},
	{Label: "1m_5m", Min: 1_000_000, Max: 5_000_000},
	{Label: "5m_10m", Min: 5_000_000, Max: 10_000_000},
	{Label: "10m_20m", Min: 10_000_000, Max: 20_000_000},
	{Label: "over_20m", Min: 20_000_000},
}

// Generate counts categories, brands and locations in products and reports
// their price span. Counts are ordered by count descending, then name.
// Values differing only in case are counted together under the first
// spelling seen.
func Generate(products []domain.Product) domain.Facets {
	f := domain.Facets{
		Categories:   count(products, func(p *domain.Product) string { return p.Category }),
		Brands:       count(products, func(p *domain.Product) string { return p.Brand }),
		Locations:    count(products, func(p *domain.Product) string { return p.Location }),
		PriceBuckets: slices.Clone(buckets),
	}

	for i := range products {
		price := products[i].Price
		if i == 0 {
			f.PriceRange = [2]int64{price, price}
		} else {
			f.PriceRange[0] = min(f.PriceRange[0], price)
			f.PriceRange[1] = max(f.PriceRange[1], price)
		}
		for b := range f.PriceBuckets {
			if inBucket(&f.PriceBuckets[b], price) {
				f.PriceBuckets[b].Count++
				break
			}
		}
	}
	return f
}

func inBucket(b *domain.PriceBucket, price int64) bool {
	return price >= b.Min && (b.Max == 0 || price < b.Max)
}

func count(products []domain.Product, field func(*domain.Product) string) []domain.FacetCount {
	index := make(map[string]int)
	out := make([]domain.FacetCount, 0)
	for i := range products {
		name := strings.TrimSpace(field(&products[i]))
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if pos, ok := index[key]; ok {
			out[pos].Count++
			continue
		}
		index[key] = len(out)
		out = append(out, domain.FacetCount{Name: name, Count: 1})
	}

	slices.SortFunc(out, func(a, b domain.FacetCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
