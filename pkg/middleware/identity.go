package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/utafrali/storefront-search/pkg/logger"
)

const (
	HeaderSessionID    = "X-Session-ID"
	HeaderUserID       = "X-User-ID"
	HeaderUserLocation = "X-User-Location"
)

type contextKeyType string

const (
	sessionIDKey contextKeyType = "session_id"
	userIDKey    contextKeyType = "user_id"
	locationKey  contextKeyType = "user_location"
)

const maxIdentityLen = 128

// Identity reads the shopper's session, user and location headers into the
// request context. A missing or oversized session id is replaced by a fresh
// uuid, and the effective id is echoed on the response.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			sessionID := clean(r.Header.Get(HeaderSessionID))
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			w.Header().Set(HeaderSessionID, sessionID)
			ctx = context.WithValue(ctx, sessionIDKey, sessionID)
			ctx = logger.WithSessionID(ctx, sessionID)

			if userID := clean(r.Header.Get(HeaderUserID)); userID != "" {
				ctx = context.WithValue(ctx, userIDKey, userID)
				ctx = logger.WithUserID(ctx, userID)
			}
			if loc := clean(r.Header.Get(HeaderUserLocation)); loc != "" {
				ctx = context.WithValue(ctx, locationKey, loc)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clean(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > maxIdentityLen {
		return ""
	}
	return v
}

func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}

func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

func LocationFromContext(ctx context.Context) string {
	if loc, ok := ctx.Value(locationKey).(string); ok {
		return loc
	}
	return ""
}
