package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/utafrali/storefront-search/internal/domain"
	apperrors "github.com/utafrali/storefront-search/pkg/errors"
	"github.com/utafrali/storefront-search/pkg/slug"
	"github.com/utafrali/storefront-search/pkg/validator"
)

// reindexPageSize is how many products Reindex requests per page.
const reindexPageSize = 100

// IndexProductInput is the payload for indexing a single product.
type IndexProductInput struct {
	ID            string   `json:"id" validate:"required,max=64"`
	Name          string   `json:"name" validate:"required,max=255"`
	Slug          string   `json:"slug" validate:"max=255"`
	Description   string   `json:"description"`
	Price         int64    `json:"price" validate:"gte=0"`
	OriginalPrice *int64   `json:"original_price,omitempty"`
	Rating        float64  `json:"rating" validate:"gte=0,lte=5"`
	ReviewCount   int      `json:"review_count" validate:"gte=0"`
	Category      string   `json:"category"`
	Brand         string   `json:"brand"`
	Location      string   `json:"location"`
	InStock       bool     `json:"in_stock"`
	FreeShipping  bool     `json:"free_shipping"`
	SoldCount     int      `json:"sold_count" validate:"gte=0"`
	Tags          []string `json:"tags"`
	ImageURL      string   `json:"image_url"`
}

// Validate checks the struct tags plus the rules spanning fields.
func (in *IndexProductInput) Validate() error {
	err := validator.Validate(in)
	var issues *validator.ValidationError
	if err != nil && !errors.As(err, &issues) {
		return err
	}
	if issues == nil {
		issues = validator.NewValidationError()
	}
	if in.OriginalPrice != nil && *in.OriginalPrice < in.Price {
		issues.Add("original_price", validator.MsgGTE, "price")
	}
	if issues.Empty() {
		return nil
	}
	return issues
}

func (in *IndexProductInput) product(now time.Time) *domain.Product {
	p := &domain.Product{
		ID:            in.ID,
		Name:          in.Name,
		Slug:          in.Slug,
		Description:   in.Description,
		Price:         in.Price,
		OriginalPrice: in.OriginalPrice,
		Rating:        in.Rating,
		ReviewCount:   in.ReviewCount,
		Category:      in.Category,
		Brand:         in.Brand,
		Location:      in.Location,
		InStock:       in.InStock,
		FreeShipping:  in.FreeShipping,
		SoldCount:     in.SoldCount,
		Tags:          in.Tags,
		ImageURL:      in.ImageURL,
		CreatedAt:     now.UTC(),
	}
	if p.Slug == "" {
		p.Slug = slug.Generate(p.Name)
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p
}

// IndexProduct validates the input and adds or updates the product.
func (s *SearchService) IndexProduct(ctx context.Context, input *IndexProductInput) error {
	if err := input.Validate(); err != nil {
		return err
	}

	if err := s.retriever.Primary().Index(ctx, input.product(s.now())); err != nil {
		return fmt.Errorf("index product %s: %w", input.ID, err)
	}
	s.catalogChanged(ctx)

	s.logger.InfoContext(ctx, "product indexed",
		slog.String("product_id", input.ID),
		slog.String("name", input.Name),
	)
	return nil
}

// DeleteProduct removes a product from the search index.
func (s *SearchService) DeleteProduct(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("product id is required")
	}

	if err := s.retriever.Primary().Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	s.catalogChanged(ctx)

	s.logger.InfoContext(ctx, "product removed from index", slog.String("product_id", id))
	return nil
}

// BulkIndex indexes every valid input and returns how many were indexed.
// Invalid entries are skipped and logged.
func (s *SearchService) BulkIndex(ctx context.Context, inputs []IndexProductInput) (int, error) {
	now := s.now()
	products := make([]domain.Product, 0, len(inputs))
	for i := range inputs {
		if err := inputs[i].Validate(); err != nil {
			s.logger.WarnContext(ctx, "skipping invalid product in bulk index",
				slog.Int("index", i),
				slog.String("product_id", inputs[i].ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		products = append(products, *inputs[i].product(now))
	}

	if len(products) == 0 {
		return 0, nil
	}

	if err := s.retriever.Primary().BulkIndex(ctx, products); err != nil {
		return 0, fmt.Errorf("bulk index products: %w", err)
	}
	s.catalogChanged(ctx)

	s.logger.InfoContext(ctx, "bulk indexed products",
		slog.Int("indexed", len(products)),
		slog.Int("skipped", len(inputs)-len(products)),
	)
	return len(products), nil
}

// catalogChanged drops every cache derived from the catalog.
func (s *SearchService) catalogChanged(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	s.suggest.Invalidate(ctx)
	if err := s.facets.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate facet cache", slog.String("error", err.Error()))
	}
}

// catalogProduct is a product as the product service lists it.
type catalogProduct struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Status      string `json:"status"`
	BasePrice   int64  `json:"base_price"`
	Category    *struct {
		Name string `json:"name"`
	} `json:"category"`
	Brand *struct {
		Name string `json:"name"`
	} `json:"brand"`
	Images []struct {
		URL       string `json:"url"`
		IsPrimary bool   `json:"is_primary"`
	} `json:"images"`
}

type catalogPage struct {
	Data       []catalogProduct `json:"data"`
	TotalCount int              `json:"total_count"`
	Page       int              `json:"page"`
	TotalPages int              `json:"total_pages"`
}

func (c *catalogProduct) input() IndexProductInput {
	in := IndexProductInput{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		Price:       c.BasePrice,
		InStock:     true,
	}
	if c.Category != nil {
		in.Category = c.Category.Name
	}
	if c.Brand != nil {
		in.Brand = c.Brand.Name
	}
	for _, img := range c.Images {
		if in.ImageURL == "" || img.IsPrimary {
			in.ImageURL = img.URL
		}
	}
	return in
}

// Reindex pages through the product service and indexes every published
// product. It returns the number of products indexed.
func (s *SearchService) Reindex(ctx context.Context) (int, error) {
	if s.catalog == nil || s.catalogURL == "" {
		return 0, apperrors.Unavailable("REINDEX_DISABLED", "no product service is configured", nil)
	}

	total := 0
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("fetch products page %d: %w", page, err)
		}

		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(reindexPageSize))

		var resp catalogPage
		if err := s.catalog.GetJSON(ctx, s.catalogURL+"/api/v1/products?"+q.Encode(), &resp); err != nil {
			return total, fmt.Errorf("fetch products page %d: %w", page, err)
		}

		inputs := make([]IndexProductInput, 0, len(resp.Data))
		for i := range resp.Data {
			if st := resp.Data[i].Status; st != "" && st != "published" {
				continue
			}
			inputs = append(inputs, resp.Data[i].input())
		}

		n, err := s.BulkIndex(ctx, inputs)
		if err != nil {
			return total, fmt.Errorf("index products page %d: %w", page, err)
		}
		total += n

		if len(resp.Data) == 0 || page >= resp.TotalPages {
			break
		}
	}

	s.logger.InfoContext(ctx, "reindex completed", slog.Int("indexed", total))
	return total, nil
}
