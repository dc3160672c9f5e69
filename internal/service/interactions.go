package service

import (
	"context"
	"log/slog"

	"github.com/utafrali/storefront-search/internal/analytics"
	"github.com/utafrali/storefront-search/internal/domain"
	apperrors "github.com/utafrali/storefront-search/pkg/errors"
	"github.com/utafrali/storefront-search/pkg/validator"
)

// Suggest returns autocomplete entries for partial and tracks the lookup.
func (s *SearchService) Suggest(ctx context.Context, partial string, meta Meta) ([]domain.Suggestion, error) {
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	out := s.suggest.Suggest(ctx, partial)
	if err := checkpoint(ctx); err != nil {
		return nil, err
	}

	if s.suggest.Active(partial) {
		s.analytics.Track(context.WithoutCancel(ctx), analytics.Event{
			Name:         analytics.EventSuggest,
			SessionID:    meta.SessionID,
			UserID:       meta.UserID,
			Query:        partial,
			ResultsCount: len(out),
			SearchType:   analytics.SearchTypeSuggest,
			At:           s.now().UTC(),
		})
	}
	return out, nil
}

// Trending returns the most searched queries.
func (s *SearchService) Trending(ctx context.Context) []string {
	return s.suggest.Trending(ctx)
}

// History returns the recent searches of the caller.
func (s *SearchService) History(ctx context.Context, meta Meta) []string {
	owner := meta.owner()
	if owner == "" {
		return []string{}
	}
	return s.suggest.History(ctx, owner)
}

// ClearHistory forgets the recent searches of the caller.
func (s *SearchService) ClearHistory(ctx context.Context, meta Meta) error {
	owner := meta.owner()
	if owner == "" {
		return apperrors.InvalidInput("a session or user id is required")
	}
	if err := s.suggest.ClearHistory(ctx, owner); err != nil {
		return apperrors.Unavailable("HISTORY_UNAVAILABLE", "search history is temporarily unavailable", err)
	}
	return nil
}

// ClickInput reports a product opened from a result list.
type ClickInput struct {
	ProductID   string `json:"product_id" validate:"required,max=64"`
	Query       string `json:"query" validate:"max=200"`
	Position    *int   `json:"position,omitempty" validate:"omitempty,gte=0"`
	TimeSpentMs int64  `json:"time_spent_ms" validate:"gte=0"`
}

// TrackClick records a click in the caller's history, where it feeds
// personalized ranking, and forwards it to analytics.
func (s *SearchService) TrackClick(ctx context.Context, input *ClickInput, meta Meta) error {
	if err := validator.Validate(input); err != nil {
		return err
	}

	now := s.now().UTC()
	if owner := meta.owner(); owner != "" {
		click := domain.Click{ProductID: input.ProductID, At: now}
		if err := s.history.RecordClick(ctx, owner, click); err != nil {
			s.logger.WarnContext(ctx, "failed to record click",
				slog.String("product_id", input.ProductID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.analytics.Track(context.WithoutCancel(ctx), analytics.Event{
		Name:        analytics.EventClick,
		SessionID:   meta.SessionID,
		UserID:      meta.UserID,
		Query:       input.Query,
		Position:    input.Position,
		ClickedID:   input.ProductID,
		TimeSpentMs: input.TimeSpentMs,
		At:          now,
	})
	return nil
}
