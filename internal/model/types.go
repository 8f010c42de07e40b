// Package model defines domain types used by the service.
package model

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is an ISO code accepted for product prices.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyINR Currency = "INR"
)

// DefaultCurrency is applied when a create request omits the currency.
const DefaultCurrency = CurrencyINR

// Valid reports whether c is one of the supported currencies.
func (c Currency) Valid() bool {
	return c == CurrencyUSD || c == CurrencyINR
}

// RoleSeller is the role an actor needs to mutate the catalog.
const RoleSeller = "seller"

// Limits shared by validation and the storage layer.
const (
	MaxImages            = 5
	MaxDescriptionLength = 1000
	MaxSKULength         = 30
	MaxRating            = 5
	MaxAmountDigits      = 34
)

// Price is an amount in a given currency.
type Price struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

// Image references a binary asset held by the asset store.
type Image struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	FileID    string `json:"fileId"`
}

// ShippingInfo describes delivery terms of a product.
type ShippingInfo struct {
	FreeShipping      bool   `json:"freeShipping"`
	EstimatedDelivery string `json:"estimatedDelivery,omitempty"`
	Returns           string `json:"returns,omitempty"`
}

// Product represents the current state of a catalog item.
type Product struct {
	ID             string            `json:"id"`
	Title          string            `json:"title"`
	Category       string            `json:"category"`
	Description    string            `json:"description"`
	Price          Price             `json:"price"`
	OriginalPrice  decimal.Decimal   `json:"originalPrice"`
	Stock          int64             `json:"stock"`
	SKU            string            `json:"sku,omitempty"`
	Rating         float64           `json:"rating"`
	ReviewCount    int64             `json:"reviewCount"`
	Images         []Image           `json:"images"`
	Sizes          []string          `json:"sizes,omitempty"`
	Colors         []string          `json:"colors,omitempty"`
	Features       []string          `json:"features,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty"`
	ShippingInfo   ShippingInfo      `json:"shippingInfo"`
	Seller         string            `json:"seller"`
	Version        int64             `json:"version"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// FileIDs returns the asset handles of the product images in order.
func (p Product) FileIDs() []string {
	ids := make([]string, 0, len(p.Images))
	for _, im := range p.Images {
		ids = append(ids, im.FileID)
	}
	return ids
}

// Actor is the identity supplied by the authorization gate.
type Actor struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

// HasRole reports whether the actor carries role.
func (a Actor) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// Blob is an image payload awaiting upload.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}
