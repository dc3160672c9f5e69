package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-search/internal/cache"
	"github.com/utafrali/storefront-search/internal/domain"
	"github.com/utafrali/storefront-search/internal/engine/memory"
	"github.com/utafrali/storefront-search/internal/fixture"
	"github.com/utafrali/storefront-search/internal/history"
	"github.com/utafrali/storefront-search/internal/ranking"
	"github.com/utafrali/storefront-search/internal/retriever"
	"github.com/utafrali/storefront-search/internal/service"
	"github.com/utafrali/storefront-search/internal/suggest"
	"github.com/utafrali/storefront-search/internal/trending"
	"github.com/utafrali/storefront-search/pkg/breaker"
	"github.com/utafrali/storefront-search/pkg/health"
	"github.com/utafrali/storefront-search/pkg/httputil"
	"github.com/utafrali/storefront-search/pkg/middleware"
)

const testAdminToken = "s3cret"

// response mirrors the httputil envelope for decoding in tests.
type response struct {
	Data  json.RawMessage         `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, eng *memory.Engine) *service.SearchService {
	t.Helper()
	logger := discardLogger()
	r := retriever.New(eng, nil, breaker.DefaultConfig(t.Name()), logger)
	store := history.NewMemoryStore()

	return service.NewSearchService(service.Deps{
		Retriever: r,
		Optimizer: ranking.New(ranking.DefaultConfig()),
		Suggest: suggest.New(suggest.DefaultConfig(), suggest.Deps{
			Catalog:      r,
			Trending:     trending.NewMemoryTracker(),
			History:      store,
			SuggestCache: cache.NewMemory[[]domain.Suggestion](0),
			ListCache:    cache.NewMemory[[]string](0),
			Logger:       logger,
		}),
		History:    store,
		FacetCache: cache.NewMemory[domain.Facets](0),
		FacetTTL:   time.Minute,
		Logger:     logger,
	})
}

func newRouterWith(t *testing.T, eng *memory.Engine) http.Handler {
	t.Helper()
	return NewRouter(context.Background(), RouterConfig{
		ServiceName:     "search",
		AdminToken:      testAdminToken,
		CORS:            middleware.DefaultCORSConfig(),
		SearchDebounce:  100 * time.Millisecond,
		SuggestDebounce: 50 * time.Millisecond,
	}, newTestService(t, eng), health.NewHandler(), discardLogger())
}

func newTestRouter(t *testing.T) http.Handler {
	return newRouterWith(t, memory.NewSeeded(fixture.Products()))
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, response) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func adminRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	return req
}

// --- Search ---

func TestSearch_ReturnsRankedResults(t *testing.T) {
	router := newTestRouter(t)

	w, resp := do(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=apple", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderSessionID))

	var data domain.SearchResponse
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, 2, data.Total)
	require.Len(t, data.Items, 2)
	assert.Equal(t, "p-001", data.Items[0].ID)
	assert.NotNil(t, data.Items[0].RelevanceScore)
}

func TestSearch_FiltersFromQueryString(t *testing.T) {
	router := newTestRouter(t)

	w, resp := do(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/search?category=Laptop,Tai+nghe&sortBy=price_asc&minPrice=1000000", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var data domain.SearchResponse
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Equal(t, 3, data.Total)
	for i := 1; i < len(data.Items); i++ {
		assert.LessOrEqual(t, data.Items[i-1].Price, data.Items[i].Price)
	}
	for _, it := range data.Items {
		assert.GreaterOrEqual(t, it.Price, int64(1000000))
	}
}

func TestSearch_EmptyResultsCarrySuggestions(t *testing.T) {
	router := newTestRouter(t)

	w, resp := do(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/search?minPrice=100000000&maxPrice=200000000", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var data map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, float64(0), data["total"])
	assert.Equal(t, []any{}, data["items"])
	assert.NotEmpty(t, data["suggestions"])
}

func TestSearch_ValidationErrorIsLocalized(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?minPrice=abc&rating=7", nil)
	req.Header.Set("Accept-Language", "vi-VN,vi;q=0.9")
	w, resp := do(t, router, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "phải là một số", resp.Error.Fields["minPrice"])
	assert.Contains(t, resp.Error.Fields, "rating")
	assert.Equal(t, "vi", w.Header().Get("Content-Language"))
}

func TestSearch_RejectsInvertedPriceRange(t *testing.T) {
	router := newTestRouter(t)

	w, resp := do(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/search?minPrice=500&maxPrice=100", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Error.Fields, "minPrice")
}

func TestSearch_CancelledRequest(t *testing.T) {
	router := newTestRouter(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=apple", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, statusClientClosedRequest, w.Code)
	assert.Zero(t, w.Body.Len())
}

// --- Suggest, trending, history, click ---

func TestSuggest(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name  string
		query string
		empty bool
	}{
		{"missing query", "", true},
		{"single character", "?q=a", true},
		{"partial word", "?q=lap", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := do(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/search/suggest"+tt.query, nil))
			require.Equal(t, http.StatusOK, w.Code)

			var data struct {
				Suggestions []domain.Suggestion `json:"suggestions"`
			}
			require.NoError(t, json.Unmarshal(resp.Data, &data))
			assert.NotNil(t, data.Suggestions)
			assert.Equal(t, tt.empty, len(data.Suggestions) == 0)
		})
	}
}

func TestTrending_IsCacheable(t *testing.T) {
	router := newTestRouter(t)

	w, resp := do(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/search/trending", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "private, max-age=60", w.Header().Get("Cache-Control"))

	var data struct {
		Trending []string `json:"trending"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, suggest.StaticTrending, data.Trending)
}

func TestHistory_FollowsSession(t *testing.T) {
	router := newTestRouter(t)

	withSession := func(req *http.Request) *http.Request {
		req.Header.Set(middleware.HeaderSessionID, "sess-1")
		return req
	}

	w, _ := do(t, router, withSession(httptest.NewRequest(http.MethodGet, "/api/v1/search?q=apple", nil)))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sess-1", w.Header().Get(middleware.HeaderSessionID))

	readHistory := func() []string {
		w, resp := do(t, router, withSession(httptest.NewRequest(http.MethodGet, "/api/v1/search/history", nil)))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		var data struct {
			History []string `json:"history"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		return data.History
	}

	assert.Equal(t, []string{"apple"}, readHistory())

	w, _ = do(t, router, withSession(httptest.NewRequest(http.MethodDelete, "/api/v1/search/history", nil)))
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, readHistory())
}

func TestClick(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search/click", strings.NewReader(`{"product_id":"p-001","query":"apple","position":0}`))
	req.Header.Set("Content-Type", "application/json")
	w, _ := do(t, router, req)
	assert.Equal(t, http.StatusAccepted, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/search/click", strings.NewReader(`{"query":"apple"}`))
	req.Header.Set("Content-Type", "application/json")
	w, resp := do(t, router, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Error.Fields, "product_id")
}

// --- Admin ---

func TestAdmin_RequiresToken(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search/index", strings.NewReader(`{"id":"a","name":"A"}`))
	req.Header.Set("Content-Type", "application/json")
	w, resp := do(t, router, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
}

func TestAdmin_RejectsNonJSON(t *testing.T) {
	router := newTestRouter(t)

	req := adminRequest(http.MethodPost, "/api/v1/search/index", `id=a`)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w, _ := do(t, router, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestIndexProduct_AcceptsValidBody(t *testing.T) {
	eng := memory.New()
	router := newRouterWith(t, eng)

	w, resp := do(t, router, adminRequest(http.MethodPost, "/api/v1/search/index", `{"id":"test-1","name":"Valid Product","price":999000}`))
	require.Equal(t, http.StatusOK, w.Code)

	var data map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "test-1", data["id"])
	assert.Equal(t, "indexed", data["status"])
	assert.Equal(t, 1, eng.Len())
}

func TestIndexProduct_RejectsBadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing id", `{"name":"No ID Product"}`, "VALIDATION_ERROR"},
		{"missing name", `{"id":"test-2"}`, "VALIDATION_ERROR"},
		{"invalid json", `not json`, "INVALID_INPUT"},
		{"over 1MB", `{"id":"big","name":"x","description":"` + strings.Repeat("x", 1<<20) + `"}`, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouterWith(t, memory.New())

			w, resp := do(t, router, adminRequest(http.MethodPost, "/api/v1/search/index", tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestBulkIndex(t *testing.T) {
	eng := memory.New()
	router := newRouterWith(t, eng)

	body := `{"products":[{"id":"b1","name":"Bulk One"},{"id":"b2","name":"Bulk Two"},{"id":"","name":"Broken"}]}`
	w, resp := do(t, router, adminRequest(http.MethodPost, "/api/v1/search/bulk", body))
	require.Equal(t, http.StatusOK, w.Code)

	var data map[string]any
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, float64(2), data["indexed"])
	assert.Equal(t, float64(1), data["skipped"])
	assert.Equal(t, 2, eng.Len())

	w, _ = do(t, router, adminRequest(http.MethodPost, "/api/v1/search/bulk", `{"products":[]}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteProduct_ReturnsOK(t *testing.T) {
	eng := memory.NewSeeded(fixture.Products())
	router := newRouterWith(t, eng)

	w, resp := do(t, router, adminRequest(http.MethodDelete, "/api/v1/search/p-001", ""))
	require.Equal(t, http.StatusOK, w.Code)

	var data map[string]string
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "deleted", data["status"])
	assert.Equal(t, 7, eng.Len())
}

func TestReindex_Accepted(t *testing.T) {
	router := newTestRouter(t)

	w, _ := do(t, router, adminRequest(http.MethodPost, "/api/v1/search/reindex", "{}"))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	w, _ := do(t, router, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
