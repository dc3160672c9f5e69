package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-search/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCluster answers the handful of endpoints the engine calls.
type fakeCluster struct {
	mu          sync.Mutex
	indexExists bool
	created     bool
	searchBody  map[string]any
	searchReply string
	status      int
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodHead:
		if f.indexExists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && !strings.Contains(r.URL.Path, "_doc"):
		f.created = true
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		_ = json.NewDecoder(r.Body).Decode(&f.searchBody)
		if f.status != 0 {
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, `{"error":{"type":"search_phase_execution_exception","reason":"all shards failed"},"status":503}`)
			return
		}
		_, _ = io.WriteString(w, f.searchReply)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"result":"not_found"}`)
	}
}

func newFakeEngine(t *testing.T, f *fakeCluster) *Engine {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	eng, err := New(context.Background(), Config{URL: srv.URL, IndexName: "test_products", MaxCandidates: 5}, testLogger())
	require.NoError(t, err)
	return eng
}

func TestNew_CreatesMissingIndex(t *testing.T) {
	f := &fakeCluster{}
	newFakeEngine(t, f)
	assert.True(t, f.created)
}

func TestNew_KeepsExistingIndex(t *testing.T) {
	f := &fakeCluster{indexExists: true}
	newFakeEngine(t, f)
	assert.False(t, f.created)
}

func TestSearch_DecodesHits(t *testing.T) {
	f := &fakeCluster{indexExists: true, searchReply: `{
		"hits": {"total": {"value": 7}, "hits": [
			{"_source": {"id": "p-001", "name": "iPhone 15", "price": 33990000, "rating": 4.8}},
			{"_source": {"id": "p-002", "name": "Galaxy S24", "price": 29990000, "rating": 4.7}}
		]}
	}`}
	eng := newFakeEngine(t, f)

	res, err := eng.Search(context.Background(), &domain.SearchQuery{Query: "phone", SortBy: domain.SortRelevance})
	require.NoError(t, err)
	require.Equal(t, 2, res.Total, "total counts fetched candidates")
	assert.Equal(t, "p-001", res.Products[0].ID)
	assert.Equal(t, int64(33990000), res.Products[0].Price)
	assert.EqualValues(t, 5, f.searchBody["size"])
}

func TestSearch_ErrorResponse(t *testing.T) {
	f := &fakeCluster{indexExists: true, status: http.StatusServiceUnavailable}
	eng := newFakeEngine(t, f)

	_, err := eng.Search(context.Background(), &domain.SearchQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search_phase_execution_exception")
}

func TestDelete_IgnoresMissingDocument(t *testing.T) {
	f := &fakeCluster{indexExists: true}
	eng := newFakeEngine(t, f)
	assert.NoError(t, eng.Delete(context.Background(), "missing"))
}

func TestTerms_DeduplicatesBuckets(t *testing.T) {
	f := &fakeCluster{indexExists: true, searchReply: `{
		"aggregations": {
			"names": {"buckets": [{"key": "iPhone 15"}]},
			"categories": {"buckets": [{"key": "Laptop"}]},
			"brands": {"buckets": [{"key": "Apple"}, {"key": "apple"}]}
		}
	}`}
	eng := newFakeEngine(t, f)

	terms, err := eng.Terms(context.Background())
	require.NoError(t, err)
	assert.Len(t, terms, 3)
	assert.Contains(t, terms, "Laptop")
	assert.EqualValues(t, 0, f.searchBody["size"])
}

func TestBulkIndex_EmptyIsNoop(t *testing.T) {
	f := &fakeCluster{indexExists: true}
	eng := newFakeEngine(t, f)
	assert.NoError(t, eng.BulkIndex(context.Background(), nil))
}
