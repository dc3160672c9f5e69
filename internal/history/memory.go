package history

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/utafrali/storefront-search/internal/domain"
)

type record struct {
	queries []string
	clicks  []domain.Click
}

// MemoryStore keeps history in process. It is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*record)}
}

func (s *MemoryStore) Recent(_ context.Context, owner string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[owner]
	if !ok {
		return []string{}, nil
	}
	return slices.Clone(r.queries), nil
}

func (s *MemoryStore) Save(_ context.Context, owner, query string) error {
	query = normalize(query)
	if query == "" || owner == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.record(owner)
	r.queries = prepend(r.queries, query)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.records[owner]; ok {
		r.queries = nil
		if len(r.clicks) == 0 {
			delete(s.records, owner)
		}
	}
	return nil
}

func (s *MemoryStore) RecordClick(_ context.Context, owner string, click domain.Click) error {
	if owner == "" || click.ProductID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.record(owner)
	r.clicks = append([]domain.Click{click}, r.clicks...)
	if len(r.clicks) > MaxClicks {
		r.clicks = r.clicks[:MaxClicks]
	}
	return nil
}

func (s *MemoryStore) Clicks(_ context.Context, owner string, since time.Time) ([]domain.Click, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Click{}
	r, ok := s.records[owner]
	if !ok {
		return out, nil
	}
	for _, c := range r.clicks {
		if !c.At.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

// record returns the owner's record, creating it. Callers hold mu.
func (s *MemoryStore) record(owner string) *record {
	r, ok := s.records[owner]
	if !ok {
		r = &record{}
		s.records[owner] = r
	}
	return r
}

var _ Store = (*MemoryStore)(nil)
