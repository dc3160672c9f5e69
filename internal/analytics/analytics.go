// Package analytics forwards search and click tracking events. Tracking is
// fire-and-forget: it never blocks a search and never reports failures to
// the caller.
package analytics

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/utafrali/storefront-search/internal/domain"
)

// Event names.
const (
	EventSearch  = "search"
	EventClick   = "click"
	EventSuggest = "suggest"
)

// Search types.
const (
	SearchTypeFull    = "full"
	SearchTypeLive    = "live"
	SearchTypeSuggest = "suggest"
)

// Event is one tracking call.
type Event struct {
	Name         string            `json:"name"`
	SessionID    string            `json:"session_id,omitempty"`
	UserID       string            `json:"user_id,omitempty"`
	Query        string            `json:"query"`
	ResultsCount int               `json:"results_count"`
	Filters      map[string]string `json:"filters,omitempty"`
	SearchType   string            `json:"search_type,omitempty"`
	Position     *int              `json:"position,omitempty"`
	ClickedID    string            `json:"clicked_id,omitempty"`
	TimeSpentMs  int64             `json:"time_spent_ms,omitempty"`
	At           time.Time         `json:"at"`
}

// Sink accepts events without blocking.
type Sink interface {
	Track(ctx context.Context, e Event)
}

// Publisher delivers one event, blocking until done.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Track(context.Context, Event) {}

// FiltersOf describes the active filters of q, comma-joining sets.
func FiltersOf(q *domain.SearchQuery) map[string]string {
	f := make(map[string]string)
	set := func(name string, values []string) {
		if len(values) > 0 {
			f[name] = strings.Join(values, ",")
		}
	}
	set("category", q.Categories)
	set("brand", q.Brands)
	set("location", q.Locations)
	set("shipping", q.ShippingOptions)
	set("tags", q.Tags)
	if q.MinPrice != nil {
		f["minPrice"] = strconv.FormatInt(*q.MinPrice, 10)
	}
	if q.MaxPrice != nil {
		f["maxPrice"] = strconv.FormatInt(*q.MaxPrice, 10)
	}
	if q.MinRating != nil {
		f["rating"] = strconv.FormatFloat(*q.MinRating, 'f', -1, 64)
	}
	if q.InStock != nil {
		f["inStock"] = strconv.FormatBool(*q.InStock)
	}
	if q.SortBy != "" && q.SortBy != domain.SortRelevance {
		f["sortBy"] = q.SortBy
	}
	if len(f) == 0 {
		return nil
	}
	return f
}
