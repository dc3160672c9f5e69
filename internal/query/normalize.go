// Package query turns loosely typed client input into a validated
// domain.SearchQuery. Malformed input is rejected here, never corrected.
package query

import (
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/utafrali/storefront-search/internal/domain"
	"github.com/utafrali/storefront-search/pkg/validator"
)

// MaxQueryLength bounds the free-text query, in runes.
const MaxQueryLength = 200

// MsgPriceOrder is reported on minPrice when it exceeds maxPrice.
const MsgPriceOrder = "must not be greater than maxPrice"

func init() {
	validator.RegisterMessage(language.Vietnamese, MsgPriceOrder, "không được lớn hơn maxPrice")
}

// checked carries parsed values through tag validation. JSON names match
// the URL parameters so issues point at what the client sent.
type checked struct {
	Q        string   `json:"q" validate:"max=200"`
	MinPrice *int64   `json:"minPrice" validate:"omitempty,gte=0"`
	MaxPrice *int64   `json:"maxPrice" validate:"omitempty,gte=0"`
	Rating   *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
	SortBy   string   `json:"sortBy" validate:"oneof=relevance price_asc price_desc rating newest bestseller"`
	Page     int      `json:"page" validate:"gte=1"`
	Limit    int      `json:"limit" validate:"gte=1,lte=100"`
}

// Normalize validates raw and returns the canonical query: trimmed text,
// deduplicated sorted sets, defaults for sort, page and limit. Every problem
// is reported at once in a *validator.ValidationError.
func Normalize(raw Raw) (domain.SearchQuery, error) {
	issues := validator.NewValidationError()

	c := checked{
		Q:      strings.TrimSpace(raw.Q),
		SortBy: strings.ToLower(strings.TrimSpace(raw.SortBy)),
		Page:   1,
		Limit:  domain.DefaultLimit,
	}
	if c.SortBy == "" {
		c.SortBy = domain.SortRelevance
	}

	c.MinPrice = parseInt64(issues, "minPrice", raw.MinPrice)
	c.MaxPrice = parseInt64(issues, "maxPrice", raw.MaxPrice)
	c.Rating = parseFloat(issues, "rating", raw.Rating)
	inStock := parseBool(issues, "inStock", raw.InStock)
	if p := parseInt64(issues, "page", raw.Page); p != nil {
		// Pages past the end are empty, so any page beyond MaxInt32 is
		// equivalent to MaxInt32 and stays representable as int everywhere.
		c.Page = int(min(*p, math.MaxInt32))
	}
	if l := parseInt64(issues, "limit", raw.Limit); l != nil {
		c.Limit = int(*l)
	}

	if err := validator.Validate(c); err != nil {
		var valErr *validator.ValidationError
		if !errors.As(err, &valErr) {
			return domain.SearchQuery{}, err
		}
		issues.Issues = append(issues.Issues, valErr.Issues...)
	}
	if c.MinPrice != nil && c.MaxPrice != nil && *c.MinPrice > *c.MaxPrice {
		issues.Add("minPrice", MsgPriceOrder)
	}
	if !issues.Empty() {
		return domain.SearchQuery{}, issues
	}

	return domain.SearchQuery{
		Query:           c.Q,
		Categories:      canonicalSet(raw.Category),
		Brands:          canonicalSet(raw.Brand),
		MinPrice:        c.MinPrice,
		MaxPrice:        c.MaxPrice,
		MinRating:       c.Rating,
		InStock:         inStock,
		Locations:       canonicalSet(raw.Location),
		ShippingOptions: canonicalSet(lower(raw.Shipping)),
		Tags:            canonicalSet(lower(raw.Tags)),
		SortBy:          c.SortBy,
		Page:            c.Page,
		Limit:           c.Limit,
	}, nil
}

func parseInt64(issues *validator.ValidationError, field string, s Scalar) *int64 {
	v := strings.TrimSpace(string(s))
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		issues.Add(field, validator.MsgNotANumber)
		return nil
	}
	return &n
}

func parseFloat(issues *validator.ValidationError, field string, s Scalar) *float64 {
	v := strings.TrimSpace(string(s))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		issues.Add(field, validator.MsgNotANumber)
		return nil
	}
	return &f
}

func parseBool(issues *validator.ValidationError, field string, s Scalar) *bool {
	v := strings.TrimSpace(string(s))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		issues.Add(field, validator.MsgNotABool)
		return nil
	}
	return &b
}

// canonicalSet drops case-insensitive duplicates, keeping the first
// spelling, and sorts the result so equal sets compare equal.
func canonicalSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func lower(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
