package model

import "github.com/shopspring/decimal"

// Query limits applied by the read path.
const (
	DefaultPageSize = 20
	MaxPageSize     = 20
)

// Filter selects products for listing.
type Filter struct {
	Query    string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Category string
	Skip     int64
	Limit    int64
}

// Normalize clamps pagination to the supported window.
func (f *Filter) Normalize() {
	if f.Skip < 0 {
		f.Skip = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
}
