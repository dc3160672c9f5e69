// Package postgres implements the search engine over a PostgreSQL products
// table using ILIKE for text matching and ANY for set filters.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront-search/internal/domain"
	"github.com/utafrali/storefront-search/internal/engine"
	"github.com/utafrali/storefront-search/pkg/database"
	"github.com/utafrali/storefront-search/pkg/slug"
)

// DB is the pool surface the engine needs.
type DB interface {
	database.TxBeginner
	Ping(ctx context.Context) error
}

// Engine is a PostgreSQL-backed implementation of engine.SearchEngine.
type Engine struct {
	db DB
}

// New creates a new PostgreSQL search engine.
func New(db DB) *Engine {
	return &Engine{db: db}
}

func (e *Engine) Name() string { return "postgres" }

const productColumns = `id, name, slug, description, price, original_price, rating, review_count,
		category, brand, location, in_stock, free_shipping, sold_count, tags, image_url, created_at`

const upsertProduct = `
		INSERT INTO products (id, name, slug, description, price, original_price, rating, review_count,
			category, brand, location, in_stock, free_shipping, sold_count, tags, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, slug = EXCLUDED.slug, description = EXCLUDED.description,
			price = EXCLUDED.price, original_price = EXCLUDED.original_price, rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count, category = EXCLUDED.category, brand = EXCLUDED.brand,
			location = EXCLUDED.location, in_stock = EXCLUDED.in_stock, free_shipping = EXCLUDED.free_shipping,
			sold_count = EXCLUDED.sold_count, tags = EXCLUDED.tags, image_url = EXCLUDED.image_url,
			updated_at = EXCLUDED.updated_at`

func upsertArgs(p *domain.Product, now time.Time) []any {
	s := p.Slug
	if s == "" {
		s = slug.Generate(p.Name)
	}
	tags := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		tags[i] = strings.ToLower(t)
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	return []any{
		p.ID, p.Name, s, p.Description, p.Price, p.OriginalPrice, p.Rating, p.ReviewCount,
		p.Category, p.Brand, p.Location, p.InStock, p.FreeShipping, p.SoldCount, tags, p.ImageURL,
		createdAt, now,
	}
}

// Index upserts a single product.
func (e *Engine) Index(ctx context.Context, product *domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, "IndexProduct", upsertProduct)
	defer func() { end(err) }()

	if _, err = e.db.Exec(ctx, upsertProduct, upsertArgs(product, time.Now().UTC())...); err != nil {
		return fmt.Errorf("upsert product %s: %w", product.ID, err)
	}
	return nil
}

// BulkIndex upserts products in a single transaction.
func (e *Engine) BulkIndex(ctx context.Context, products []domain.Product) (err error) {
	if len(products) == 0 {
		return nil
	}
	ctx, end := database.TraceQuery(ctx, "BulkIndexProducts", upsertProduct)
	defer func() { end(err) }()

	tx, err := e.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin bulk index: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()
	for i := range products {
		if _, err = tx.Exec(ctx, upsertProduct, upsertArgs(&products[i], now)...); err != nil {
			return fmt.Errorf("upsert product %s: %w", products[i].ID, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit bulk index: %w", err)
	}
	return nil
}

// Delete removes a product. Deleting an unknown id is not an error.
func (e *Engine) Delete(ctx context.Context, id string) (err error) {
	const query = `DELETE FROM products WHERE id = $1`
	ctx, end := database.TraceQuery(ctx, "DeleteProduct", query)
	defer func() { end(err) }()

	if _, err = e.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	return nil
}

// Search runs the filtered, ordered select. Every row matching q is returned.
func (e *Engine) Search(ctx context.Context, q *domain.SearchQuery) (_ *domain.CandidateSet, err error) {
	where, args := buildWhere(q)
	query := "SELECT " + productColumns + "\n\t\tFROM products" + where + "\n\t\tORDER BY " + orderBy(q)

	ctx, end := database.TraceQuery(ctx, "SearchProducts", query)
	defer func() { end(err) }()

	rows, err := e.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err = rows.Scan(
			&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.OriginalPrice, &p.Rating, &p.ReviewCount,
			&p.Category, &p.Brand, &p.Location, &p.InStock, &p.FreeShipping, &p.SoldCount, &p.Tags,
			&p.ImageURL, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return &domain.CandidateSet{Products: products, Total: len(products)}, nil
}

// buildWhere mirrors engine.Matches condition for condition.
func buildWhere(q *domain.SearchQuery) (string, []any) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)
	add := func(format string, arg any) {
		conditions = append(conditions, fmt.Sprintf(format, argIndex))
		args = append(args, arg)
		argIndex++
	}

	if q.Query != "" {
		add("(name ILIKE $%[1]d OR description ILIKE $%[1]d OR category ILIKE $%[1]d OR brand ILIKE $%[1]d)",
			"%"+escapeLike(q.Query)+"%")
	}
	if len(q.Categories) > 0 {
		add("lower(category) = ANY($%d)", lowerAll(q.Categories))
	}
	if len(q.Brands) > 0 {
		add("lower(brand) = ANY($%d)", lowerAll(q.Brands))
	}
	if q.MinPrice != nil {
		add("price >= $%d", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		add("price <= $%d", *q.MaxPrice)
	}
	if q.MinRating != nil {
		add("rating >= $%d", *q.MinRating)
	}
	if q.FreeShippingOnly() {
		conditions = append(conditions, "free_shipping")
	}
	if q.InStock != nil {
		add("in_stock = $%d", *q.InStock)
	}
	if len(q.Locations) > 0 {
		add("lower(location) = ANY($%d)", lowerAll(q.Locations))
	}
	if len(q.Tags) > 0 {
		add("tags @> $%d", lowerAll(q.Tags))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "\n\t\tWHERE " + strings.Join(conditions, " AND "), args
}

// orderBy mirrors engine.Sort.
func orderBy(q *domain.SearchQuery) string {
	switch q.SortBy {
	case domain.SortPriceAsc:
		return "price ASC, id ASC"
	case domain.SortPriceDesc:
		return "price DESC, id ASC"
	case domain.SortRating:
		return "rating DESC, id ASC"
	case domain.SortNewest, domain.SortBestseller:
		return "sold_count DESC, id ASC"
	default:
		if q.Query != "" {
			return "rating DESC, id ASC"
		}
		return "lower(name) ASC, id ASC"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}

// Terms lists distinct names, categories and brands.
func (e *Engine) Terms(ctx context.Context) (_ []string, err error) {
	const query = `
		SELECT term FROM (
			SELECT name AS term FROM products
			UNION SELECT category FROM products
			UNION SELECT brand FROM products
		) t
		WHERE term <> ''
		ORDER BY term`

	ctx, end := database.TraceQuery(ctx, "ProductTerms", query)
	defer func() { end(err) }()

	rows, err := e.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list product terms: %w", err)
	}
	terms, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect product terms: %w", err)
	}
	return terms, nil
}

func (e *Engine) Ping(ctx context.Context) error {
	if err := e.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

var (
	_ engine.SearchEngine = (*Engine)(nil)
	_ engine.TermSource   = (*Engine)(nil)
)
