package pagination

import "math"

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a 1-based page request.
type Params struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Offset is the index of the first item on the page. It saturates at
// math.MaxInt instead of overflowing.
func (p Params) Offset() int {
	if p.Page < 1 || p.Limit <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// TotalPages returns ceil(total/limit), and 0 for an empty set.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Window returns the [start, end) bounds of the page inside a set of
// total items. Pages past the end yield an empty window.
func Window(total int, p Params) (start, end int) {
	if p.Limit <= 0 || total <= 0 {
		return 0, 0
	}
	if p.Page-1 >= TotalPages(total, p.Limit) {
		return total, total
	}
	start = p.Offset()
	if start >= total {
		return total, total
	}
	end = start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}

// Slice returns the page of items selected by p. The result is never nil.
func Slice[T any](items []T, p Params) []T {
	start, end := Window(len(items), p)
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}
