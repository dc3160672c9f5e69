// Package fixture holds the built-in catalog served when the primary search
// engine is unreachable.
package fixture

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/utafrali/storefront-search/internal/domain"
)

//go:embed products.json
var productsJSON []byte

var (
	once     sync.Once
	products []domain.Product
	loadErr  error
)

// Load decodes the embedded catalog.
func Load() ([]domain.Product, error) {
	once.Do(func() {
		loadErr = json.Unmarshal(productsJSON, &products)
		if loadErr != nil {
			loadErr = fmt.Errorf("decode fixture catalog: %w", loadErr)
		}
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return Clone(products), nil
}

// Products is Load for callers that treat a broken embedded catalog as a
// programming error.
func Products() []domain.Product {
	p, err := Load()
	if err != nil {
		panic(err)
	}
	return p
}

// Clone deep-copies products so callers cannot mutate shared state.
func Clone(in []domain.Product) []domain.Product {
	out := make([]domain.Product, len(in))
	for i, p := range in {
		p.Tags = slices.Clone(p.Tags)
		if p.OriginalPrice != nil {
			v := *p.OriginalPrice
			p.OriginalPrice = &v
		}
		out[i] = p
	}
	return out
}
