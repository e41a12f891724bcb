package domain

import "github.com/shopspring/decimal"

// ProductRecord is a product as returned by the product API. Its shape varies
// from record to record, so it is kept as decoded JSON.
type ProductRecord map[string]any

// DisplayProduct is the normalized, render-ready projection of a ProductRecord.
// Instances are rebuilt on every fetch and carry no identity across fetches.
type DisplayProduct struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"` // data URI, empty when absent
	Color       string          `json:"color,omitempty"`
	Size        string          `json:"size,omitempty"`
	Weight      string          `json:"weight,omitempty"`
	Status      string          `json:"status,omitempty"`

	// Rating and Reviews are presentation-only and regenerated on every fetch.
	Rating  float64 `json:"rating"`
	Reviews int     `json:"reviews"`
}

// HasImage reports whether an image was decoded for the product.
func (p DisplayProduct) HasImage() bool {
	return p.Image != ""
}

// DisplayPrice renders the price with two decimals.
func (p DisplayProduct) DisplayPrice() string {
	return p.Price.StringFixed(2)
}
