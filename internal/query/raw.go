package query

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

// StringSet is a multi-select filter value. It decodes from a single string
// (comma-joined values allowed), an array of strings, or null.
type StringSet []string

func (s *StringSet) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = nil
		return nil
	case len(b) > 0 && b[0] == '[':
		var items []string
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*s = splitAll(items)
		return nil
	default:
		var one string
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*s = splitAll([]string{one})
		return nil
	}
}

// Scalar is a loosely typed value. It decodes from a JSON string, number or
// boolean and keeps the literal text, so parsing and validation happen in one
// place for URL and JSON input alike.
type Scalar string

func (s *Scalar) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Scalar(str)
		return nil
	}
	*s = Scalar(b)
	return nil
}

// Raw is a search request as received from a client, before normalization.
// Field names follow the URL query string.
type Raw struct {
	Q        string    `json:"q"`
	Category StringSet `json:"category"`
	Brand    StringSet `json:"brand"`
	Location StringSet `json:"location"`
	Shipping StringSet `json:"shipping"`
	Tags     StringSet `json:"tags"`
	MinPrice Scalar    `json:"minPrice"`
	MaxPrice Scalar    `json:"maxPrice"`
	Rating   Scalar    `json:"rating"`
	InStock  Scalar    `json:"inStock"`
	SortBy   string    `json:"sortBy"`
	Page     Scalar    `json:"page"`
	Limit    Scalar    `json:"limit"`
}

// FromValues reads a Raw from URL query parameters. List parameters may be
// repeated, comma-joined, or both.
func FromValues(v url.Values) Raw {
	return Raw{
		Q:        v.Get("q"),
		Category: splitAll(v["category"]),
		Brand:    splitAll(v["brand"]),
		Location: splitAll(v["location"]),
		Shipping: splitAll(v["shipping"]),
		Tags:     splitAll(v["tags"]),
		MinPrice: Scalar(v.Get("minPrice")),
		MaxPrice: Scalar(v.Get("maxPrice")),
		Rating:   Scalar(v.Get("rating")),
		InStock:  Scalar(v.Get("inStock")),
		SortBy:   v.Get("sortBy"),
		Page:     Scalar(v.Get("page")),
		Limit:    Scalar(v.Get("limit")),
	}
}

func splitAll(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
