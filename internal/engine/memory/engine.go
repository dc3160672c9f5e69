package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/utafrali/storefront-search/internal/domain"
	"github.com/utafrali/storefront-search/internal/engine"
	"github.com/utafrali/storefront-search/internal/fixture"
)

// Engine is an in-memory implementation of the SearchEngine interface.
// It backs local runs and serves as the fallback catalog.
// Thread-safe via sync.RWMutex.
type Engine struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

// New creates an empty in-memory search engine.
func New() *Engine {
	return &Engine{
		products: make(map[string]domain.Product),
	}
}

// NewSeeded creates an engine holding products.
func NewSeeded(products []domain.Product) *Engine {
	e := New()
	for _, p := range fixture.Clone(products) {
		e.products[p.ID] = p
	}
	return e
}

func (e *Engine) Name() string { return "memory" }

// Index adds or updates a single product in the in-memory index.
func (e *Engine) Index(_ context.Context, product *domain.Product) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.products[product.ID] = fixture.Clone([]domain.Product{*product})[0]
	return nil
}

// Delete removes a product from the in-memory index by its ID.
func (e *Engine) Delete(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.products, id)
	return nil
}

// Search scans every product. The context is only checked up front; a scan
// over the in-memory catalog is short.
func (e *Engine) Search(ctx context.Context, query *domain.SearchQuery) (*domain.CandidateSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.RLock()
	matched := make([]domain.Product, 0)
	for _, p := range e.products {
		if engine.Matches(&p, query) {
			matched = append(matched, p)
		}
	}
	e.mu.RUnlock()

	matched = fixture.Clone(matched)
	engine.Sort(matched, query.SortBy, query.Query != "")

	return &domain.CandidateSet{Products: matched, Total: len(matched)}, nil
}

// BulkIndex adds or updates multiple products in the in-memory index.
func (e *Engine) BulkIndex(_ context.Context, products []domain.Product) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range fixture.Clone(products) {
		e.products[p.ID] = p
	}
	return nil
}

func (e *Engine) Ping(context.Context) error { return nil }

// Terms lists distinct product names, categories and brands, sorted.
func (e *Engine) Terms(context.Context) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	seen := make(map[string]struct{})
	terms := make([]string, 0, len(e.products)*3)
	for _, p := range e.products {
		for _, t := range []string{p.Name, p.Category, p.Brand} {
			key := strings.ToLower(t)
			if _, ok := seen[key]; ok || t == "" {
				continue
			}
			seen[key] = struct{}{}
			terms = append(terms, t)
		}
	}
	slices.Sort(terms)
	return terms, nil
}

// Len returns the number of indexed products.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.products)
}

var (
	_ engine.SearchEngine = (*Engine)(nil)
	_ engine.TermSource   = (*Engine)(nil)
)
