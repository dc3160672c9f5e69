package middleware

import (
	"fmt"
	"net/http"
)

// CacheControl marks GET responses cacheable by browsers for maxAge seconds.
// Responses vary on the shopper identity headers because ranking is personalised.
func CacheControl(maxAge int) func(http.Handler) http.Handler {
	value := fmt.Sprintf("private, max-age=%d", maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				w.Header().Set("Cache-Control", value)
				w.Header().Add("Vary", HeaderSessionID+", "+HeaderUserID+", "+HeaderUserLocation+", Accept-Language")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore disables caching, used for history and admin routes.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
