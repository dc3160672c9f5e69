// Package event keeps the search index in step with the catalog by consuming
// product domain events.
package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/storefront-search/pkg/kafka"

	"github.com/utafrali/storefront-search/internal/service"
)

// Kafka topics of product domain events consumed by the search service. The
// event type of each message equals its topic.
var (
	TopicProductCreated = pkgkafka.Topic("product", "created")
	TopicProductUpdated = pkgkafka.Topic("product", "updated")
	TopicProductDeleted = pkgkafka.Topic("product", "deleted")
)

// Topics lists every topic Handle understands.
func Topics() []string {
	return []string{TopicProductCreated, TopicProductUpdated, TopicProductDeleted}
}

// statusPublished is the only catalog status that is searchable. An empty
// status is treated as published.
const statusPublished = "published"

// ProductEventData represents the payload from product domain events.
type ProductEventData struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	Description   string   `json:"description"`
	Status        string   `json:"status"`
	BasePrice     int64    `json:"base_price"`
	OriginalPrice *int64   `json:"original_price,omitempty"`
	CategoryName  string   `json:"category_name"`
	BrandName     string   `json:"brand_name"`
	Location      string   `json:"location"`
	Rating        float64  `json:"rating"`
	ReviewCount   int      `json:"review_count"`
	SoldCount     int      `json:"sold_count"`
	InStock       *bool    `json:"in_stock,omitempty"`
	FreeShipping  bool     `json:"free_shipping"`
	Tags          []string `json:"tags"`
	ImageURL      string   `json:"image_url"`
}

func (d *ProductEventData) input() *service.IndexProductInput {
	inStock := true
	if d.InStock != nil {
		inStock = *d.InStock
	}
	return &service.IndexProductInput{
		ID:            d.ID,
		Name:          d.Name,
		Slug:          d.Slug,
		Description:   d.Description,
		Price:         d.BasePrice,
		OriginalPrice: d.OriginalPrice,
		Rating:        d.Rating,
		ReviewCount:   d.ReviewCount,
		Category:      d.CategoryName,
		Brand:         d.BrandName,
		Location:      d.Location,
		InStock:       inStock,
		FreeShipping:  d.FreeShipping,
		SoldCount:     d.SoldCount,
		Tags:          d.Tags,
		ImageURL:      d.ImageURL,
	}
}

// ProductDeletedData represents the payload from a product.deleted event.
type ProductDeletedData struct {
	ID string `json:"id"`
}

// Indexer is the part of the search service the consumer drives.
type Indexer interface {
	IndexProduct(ctx context.Context, input *service.IndexProductInput) error
	DeleteProduct(ctx context.Context, id string) error
}

// Consumer handles Kafka events related to product changes for search indexing.
type Consumer struct {
	indexer Indexer
	logger  *slog.Logger
}

// NewConsumer creates a new event consumer for the search service.
func NewConsumer(indexer Indexer, logger *slog.Logger) *Consumer {
	return &Consumer{
		indexer: indexer,
		logger:  logger,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicProductCreated, TopicProductUpdated:
		return c.handleProductUpsert(ctx, event)
	case TopicProductDeleted:
		return c.handleProductDeleted(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

// handleProductUpsert indexes a published product and removes one that was
// unpublished.
func (c *Consumer) handleProductUpsert(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductEventData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal %s data: %w", event.EventType, err)
	}

	if data.Status != "" && data.Status != statusPublished {
		if err := c.indexer.DeleteProduct(ctx, data.ID); err != nil {
			return fmt.Errorf("remove %s product %s: %w", data.Status, data.ID, err)
		}
		c.logger.InfoContext(ctx, "removed unpublished product from index",
			slog.String("product_id", data.ID),
			slog.String("status", data.Status),
		)
		return nil
	}

	if err := c.indexer.IndexProduct(ctx, data.input()); err != nil {
		return fmt.Errorf("index product from %s event: %w", event.EventType, err)
	}

	c.logger.InfoContext(ctx, "indexed product from event",
		slog.String("product_id", data.ID),
		slog.String("event_type", event.EventType),
	)
	return nil
}

// handleProductDeleted removes a deleted product from the index.
func (c *Consumer) handleProductDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductDeletedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal product.deleted data: %w", err)
	}

	if err := c.indexer.DeleteProduct(ctx, data.ID); err != nil {
		return fmt.Errorf("delete product from deleted event: %w", err)
	}

	c.logger.InfoContext(ctx, "deleted product from deleted event",
		slog.String("product_id", data.ID),
	)
	return nil
}
