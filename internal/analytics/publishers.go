package analytics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront-search/pkg/kafka"
)

// Topic receives every tracking event.
var Topic = kafka.Topic("search", "events")

const eventSource = "storefront-search"

// EventPublisher is the part of *kafka.Producer the Kafka publisher uses.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// KafkaPublisher wraps tracking events in the shared envelope, keyed by
// session so one shopper's events stay ordered.
type KafkaPublisher struct {
	producer EventPublisher
	topic    string
}

func NewKafkaPublisher(producer EventPublisher) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: Topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	env, err := kafka.NewEvent("search."+e.Name, e.SessionID, "search_session", eventSource, e)
	if err != nil {
		return err
	}
	if err := p.producer.Publish(ctx, p.topic, env); err != nil {
		return fmt.Errorf("publish analytics %s: %w", e.Name, err)
	}
	return nil
}

// LogPublisher writes events to the log.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	attrs := []any{
		slog.String("event", e.Name),
		slog.String("session_id", e.SessionID),
		slog.String("query", e.Query),
		slog.Int("results_count", e.ResultsCount),
		slog.String("search_type", e.SearchType),
	}
	if e.ClickedID != "" {
		attrs = append(attrs, slog.String("clicked_id", e.ClickedID))
	}
	if e.Position != nil {
		attrs = append(attrs, slog.Int("position", *e.Position))
	}
	if e.TimeSpentMs > 0 {
		attrs = append(attrs, slog.Int64("time_spent_ms", e.TimeSpentMs))
	}
	if len(e.Filters) > 0 {
		attrs = append(attrs, slog.Any("filters", e.Filters))
	}
	p.logger.InfoContext(ctx, "analytics event", attrs...)
	return nil
}

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = (*LogPublisher)(nil)
)
