package domain

import "time"

// Product is a catalog entry as seen by search. Prices are in VND.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description"`
	Price         int64     `json:"price"`
	OriginalPrice *int64    `json:"original_price,omitempty"`
	Rating        float64   `json:"rating"`
	ReviewCount   int       `json:"review_count"`
	Category      string    `json:"category"`
	Brand         string    `json:"brand"`
	Location      string    `json:"location"`
	InStock       bool      `json:"in_stock"`
	FreeShipping  bool      `json:"free_shipping"`
	SoldCount     int       `json:"sold_count"`
	Tags          []string  `json:"tags"`
	ImageURL      string    `json:"image_url"`
	CreatedAt     time.Time `json:"created_at"`
}

// Discount returns the percentage off the original price, or 0.
func (p *Product) Discount() int {
	if p.OriginalPrice == nil || *p.OriginalPrice <= p.Price || *p.OriginalPrice == 0 {
		return 0
	}
	return int((*p.OriginalPrice - p.Price) * 100 / *p.OriginalPrice)
}
