package engine

import (
	"context"

	"github.com/utafrali/storefront-search/internal/domain"
)

// SearchEngine defines the interface for indexing and searching products.
// Every implementation applies the same filter and sort contract (see Matches
// and Sort) and returns the full sorted candidate set; pagination happens
// after ranking.
type SearchEngine interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Index adds or updates a single product in the search index.
	Index(ctx context.Context, product *domain.Product) error

	// Delete removes a product from the search index by its ID.
	Delete(ctx context.Context, id string) error

	// Search returns every product matching query, sorted by query.SortBy.
	Search(ctx context.Context, query *domain.SearchQuery) (*domain.CandidateSet, error)

	// BulkIndex adds or updates multiple products in the search index.
	BulkIndex(ctx context.Context, products []domain.Product) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// TermSource is implemented by engines that can list the distinct product
// names, categories and brands they hold. It feeds did-you-mean hints.
type TermSource interface {
	Terms(ctx context.Context) ([]string, error)
}
