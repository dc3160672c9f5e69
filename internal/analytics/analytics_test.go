package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront-search/internal/domain"
	"github.com/utafrali/storefront-search/pkg/kafka"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
	block  chan struct{}
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Name
	}
	return out
}

func TestAsync_DeliversInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	a := NewAsync(pub, 10, discard())

	a.Track(context.Background(), Event{Name: EventSearch, Query: "iphone"})
	a.Track(context.Background(), Event{Name: EventClick, ClickedID: "p-001"})

	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, []string{EventSearch, EventClick}, pub.names())
	assert.False(t, pub.events[0].At.IsZero())
}

func TestAsync_DropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	a := NewAsync(pub, 1, discard())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			a.Track(context.Background(), Event{Name: EventSearch})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Track blocked on a full buffer")
	}

	close(pub.block)
	require.NoError(t, a.Close(context.Background()))
	// At most one in flight plus one buffered.
	assert.LessOrEqual(t, len(pub.names()), 2)
}

func TestAsync_PublishErrorsAreSwallowed(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	a := NewAsync(pub, 10, discard())
	a.Track(context.Background(), Event{Name: EventSearch})
	require.NoError(t, a.Close(context.Background()))
	assert.Len(t, pub.names(), 1)
}

func TestAsync_TrackAfterClose(t *testing.T) {
	pub := &recordingPublisher{}
	a := NewAsync(pub, 10, discard())
	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, a.Close(context.Background()))

	assert.NotPanics(t, func() { a.Track(context.Background(), Event{Name: EventSearch}) })
	assert.Empty(t, pub.names())
}

func TestAsync_CloseHonoursDeadline(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	defer close(pub.block)
	a := NewAsync(pub, 10, discard())
	a.Track(context.Background(), Event{Name: EventSearch})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Close(ctx), context.DeadlineExceeded)
}

type fakeProducer struct {
	topic string
	event *kafka.Event
	err   error
}

func (f *fakeProducer) Publish(_ context.Context, topic string, event *kafka.Event) error {
	f.topic = topic
	f.event = event
	return f.err
}

func TestKafkaPublisher(t *testing.T) {
	prod := &fakeProducer{}
	pub := NewKafkaPublisher(prod)

	pos := 2
	err := pub.Publish(context.Background(), Event{Name: EventClick, SessionID: "s-1", ClickedID: "p-001", Position: &pos})
	require.NoError(t, err)

	assert.Equal(t, "storefront.search.events", prod.topic)
	require.NotNil(t, prod.event)
	assert.Equal(t, "search.click", prod.event.EventType)
	assert.Equal(t, "s-1", prod.event.AggregateID)

	var got Event
	require.NoError(t, prod.event.UnmarshalData(&got))
	assert.Equal(t, "p-001", got.ClickedID)
	require.NotNil(t, got.Position)
	assert.Equal(t, 2, *got.Position)

	prod.err = errors.New("broker down")
	assert.Error(t, pub.Publish(context.Background(), Event{Name: EventSearch}))
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, pub.Publish(context.Background(), Event{
		Name: EventSearch, Query: "iphone", ResultsCount: 1, Filters: map[string]string{"brand": "Apple"},
	}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "analytics event", line["msg"])
	assert.Equal(t, "iphone", line["query"])
	assert.EqualValues(t, 1, line["results_count"])
}

func TestFiltersOf(t *testing.T) {
	minPrice := int64(1_000_000)
	rating := 4.5
	inStock := true
	q := &domain.SearchQuery{
		Query:     "iphone",
		Brands:    []string{"Apple", "Samsung"},
		MinPrice:  &minPrice,
		MinRating: &rating,
		InStock:   &inStock,
		SortBy:    domain.SortPriceAsc,
		Page:      1,
		Limit:     20,
	}
	assert.Equal(t, map[string]string{
		"brand":    "Apple,Samsung",
		"minPrice": "1000000",
		"rating":   "4.5",
		"inStock":  "true",
		"sortBy":   "price_asc",
	}, FiltersOf(q))

	assert.Nil(t, FiltersOf(&domain.SearchQuery{SortBy: domain.SortRelevance}))
}

func TestNoop(t *testing.T) {
	assert.NotPanics(t, func() { Noop{}.Track(context.Background(), Event{}) })
}
