package suggest

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/utafrali/storefront-search/internal/domain"
)

const maxDidYouMean = 3

// Relaxations proposes searches to run instead of q when it found nothing:
// close spellings from the catalog, the query text without its filters, a
// shorter query, then trending terms. The list is never empty.
func (e *Engine) Relaxations(ctx context.Context, q *domain.SearchQuery) []string {
	text := strings.TrimSpace(q.Query)
	out := make([]string, 0, e.cfg.MaxRelaxations)
	seen := map[string]struct{}{strings.ToLower(text): {}}
	add := func(s string) {
		key := strings.ToLower(strings.TrimSpace(s))
		if _, dup := seen[key]; dup || key == "" || len(out) >= e.cfg.MaxRelaxations {
			return
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}

	if e.Active(text) {
		for _, s := range e.didYouMean(ctx, text) {
			add(s)
		}
	}

	if text != "" && q.HasStructuralFilters() {
		// Same text, no filters. The dedupe set already holds it.
		out = append(out, text)
	}

	if words := strings.Fields(text); len(words) > 1 {
		add(strings.Join(words[:len(words)-1], " "))
	}

	for _, t := range e.Trending(ctx) {
		add(t)
	}
	if len(out) == 0 {
		out = staticTrending(e.cfg.MaxRelaxations)
	}
	if len(out) > e.cfg.MaxRelaxations {
		out = out[:e.cfg.MaxRelaxations]
	}
	return out
}

// didYouMean ranks catalog terms and their words by closeness to text: terms
// containing text's letters in order, or within a small edit distance.
func (e *Engine) didYouMean(ctx context.Context, text string) []string {
	terms, err := e.terms.Get(ctx, termsKey, e.catalog.Terms)
	if err != nil {
		e.logger.WarnContext(ctx, "did-you-mean terms unavailable", slog.String("error", err.Error()))
		return nil
	}

	vocab := vocabulary(terms)
	needle := strings.ToLower(text)
	budget := editBudget(needle)

	best := make(map[string]int)
	consider := func(target string, distance int) {
		if d, ok := best[target]; !ok || distance < d {
			best[target] = distance
		}
	}

	for _, r := range fuzzy.RankFindNormalizedFold(needle, vocab) {
		consider(r.Target, r.Distance)
	}
	for _, word := range vocab {
		if d := fuzzy.LevenshteinDistance(needle, strings.ToLower(word)); d <= budget {
			consider(word, d)
		}
	}

	ranked := make([]string, 0, len(best))
	for t := range best {
		if !strings.EqualFold(t, text) {
			ranked = append(ranked, t)
		}
	}
	slices.SortFunc(ranked, func(a, b string) int {
		if c := cmp.Compare(best[a], best[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if len(ranked) > maxDidYouMean {
		ranked = ranked[:maxDidYouMean]
	}
	return ranked
}

// vocabulary is terms plus their words of three or more letters.
func vocabulary(terms []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(terms)*3)
	add := func(s string) {
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	for _, t := range terms {
		add(t)
		for _, w := range strings.Fields(t) {
			if utf8.RuneCountInString(w) >= 3 {
				add(w)
			}
		}
	}
	return out
}

// editBudget is how many edits a typo of s may contain.
func editBudget(s string) int {
	switch n := utf8.RuneCountInString(s); {
	case n <= 4:
		return 1
	case n <= 8:
		return 2
	default:
		return 3
	}
}
