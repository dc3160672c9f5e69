// Package history keeps each shopper's recent searches and product clicks.
package history

import (
	"context"
	"strings"
	"time"

	"github.com/utafrali/storefront-search/internal/domain"
)

// Limits of one owner's history.
const (
	MaxQueries = 10
	MaxClicks  = 50
)

// Store persists recent searches and clicks per owner (a user or session id).
// Queries are returned most recent first; saving a query already present
// moves it to the front.
type Store interface {
	Recent(ctx context.Context, owner string) ([]string, error)
	Save(ctx context.Context, owner, query string) error
	Clear(ctx context.Context, owner string) error
	RecordClick(ctx context.Context, owner string, click domain.Click) error
	// Clicks returns clicks at or after since, most recent first.
	Clicks(ctx context.Context, owner string, since time.Time) ([]domain.Click, error)
}

// prepend puts q in front of list, dropping an exact duplicate and anything
// past MaxQueries.
func prepend(list []string, q string) []string {
	out := make([]string, 0, min(len(list)+1, MaxQueries))
	out = append(out, q)
	for _, s := range list {
		if len(out) == MaxQueries {
			break
		}
		if s != q {
			out = append(out, s)
		}
	}
	return out
}

func normalize(q string) string {
	return strings.TrimSpace(q)
}
