// Package trending counts how often search terms are used.
package trending

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
)

// MaxTracked bounds the number of distinct terms kept.
const MaxTracked = 1000

// Tracker counts term frequencies. Terms are case-folded and trimmed.
type Tracker interface {
	Increment(ctx context.Context, term string) error
	// Top returns the n most frequent terms, most frequent first.
	Top(ctx context.Context, n int) ([]string, error)
	// Frequencies returns the counts of the tracked terms.
	Frequencies(ctx context.Context) (map[string]int, error)
}

// Normalize folds a term the way trackers store it.
func Normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// MemoryTracker is an in-process Tracker.
type MemoryTracker struct {
	mu     sync.RWMutex
	counts map[string]int
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{counts: make(map[string]int)}
}

func (t *MemoryTracker) Increment(_ context.Context, term string) error {
	term = Normalize(term)
	if term == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts[term]++
	if len(t.counts) > MaxTracked {
		t.prune()
	}
	return nil
}

// prune keeps the MaxTracked/2 most frequent terms. Callers hold mu.
func (t *MemoryTracker) prune() {
	ranked := t.ranked()
	for _, term := range ranked[MaxTracked/2:] {
		delete(t.counts, term)
	}
}

func (t *MemoryTracker) Top(_ context.Context, n int) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ranked := t.ranked()
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

func (t *MemoryTracker) Frequencies(context.Context) (map[string]int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out, nil
}

// ranked lists terms by count descending, then alphabetically. Callers hold mu.
func (t *MemoryTracker) ranked() []string {
	terms := make([]string, 0, len(t.counts))
	for k := range t.counts {
		terms = append(terms, k)
	}
	slices.SortFunc(terms, func(a, b string) int {
		if c := cmp.Compare(t.counts[b], t.counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return terms
}

var _ Tracker = (*MemoryTracker)(nil)
