package model

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// FieldError is a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of one request.
type ValidationError []FieldError

func (v ValidationError) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

type fieldErrors []FieldError

func (f *fieldErrors) add(field, format string, args ...any) {
	*f = append(*f, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return ValidationError(f)
}

// ProductInput carries the attributes of a product to be created.
type ProductInput struct {
	Title          string
	Category       string
	Description    string
	PriceAmount    decimal.Decimal
	PriceCurrency  Currency
	OriginalPrice  decimal.Decimal
	Stock          int64
	SKU            string
	Sizes          []string
	Colors         []string
	Features       []string
	Specifications map[string]string
	ShippingInfo   ShippingInfo
}

// Normalize trims text fields, upper-cases the sku and applies the default currency.
func (in *ProductInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	in.SKU = NormalizeSKU(in.SKU)
	if in.PriceCurrency == "" {
		in.PriceCurrency = DefaultCurrency
	}
}

// Validate checks business invariants of a create request. imageCount is
// the number of blobs submitted alongside the input.
func (in ProductInput) Validate(imageCount int) error {
	var errs fieldErrors
	if in.Title == "" {
		errs.add("title", "is required")
	}
	if in.Category == "" {
		errs.add("category", "is required")
	}
	if in.Description == "" {
		errs.add("description", "is required")
	}
	validateDescription(&errs, in.Description)
	validateAmount(&errs, "priceAmount", in.PriceAmount)
	if !in.PriceCurrency.Valid() {
		errs.add("priceCurrency", "must be either USD or INR")
	}
	validateAmount(&errs, "originalPrice", in.OriginalPrice)
	if in.Stock < 0 {
		errs.add("stock", "must be an integer >= 0")
	}
	validateSKU(&errs, in.SKU)
	if imageCount > MaxImages {
		errs.add("images", "at most %d images are allowed", MaxImages)
	}
	return errs.err()
}

// Product builds the record to persist for seller with the uploaded images.
func (in ProductInput) Product(seller string, images []Image) Product {
	if images == nil {
		images = []Image{}
	}
	return Product{
		Title:          in.Title,
		Category:       in.Category,
		Description:    in.Description,
		Price:          Price{Amount: in.PriceAmount, Currency: in.PriceCurrency},
		OriginalPrice:  in.OriginalPrice,
		Stock:          in.Stock,
		SKU:            in.SKU,
		Images:         images,
		Sizes:          in.Sizes,
		Colors:         in.Colors,
		Features:       in.Features,
		Specifications: in.Specifications,
		ShippingInfo:   in.ShippingInfo,
		Seller:         seller,
	}
}

// ProductPatch carries a partial update. A nil field was not supplied and
// keeps its stored value; a non-nil field replaces it, zero values included.
type ProductPatch struct {
	Title          *string
	Category       *string
	Description    *string
	PriceAmount    *decimal.Decimal
	PriceCurrency  *Currency
	OriginalPrice  *decimal.Decimal
	Stock          *int64
	SKU            *string
	Sizes          []string
	Colors         []string
	Features       []string
	Specifications map[string]string
	ShippingInfo   *ShippingInfo
}

// Normalize trims supplied text fields and upper-cases a supplied sku.
func (p *ProductPatch) Normalize() {
	for _, s := range []*string{p.Title, p.Category, p.Description} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	if p.SKU != nil {
		*p.SKU = NormalizeSKU(*p.SKU)
	}
}

// Validate checks the supplied fields only.
func (p ProductPatch) Validate(imageCount int) error {
	var errs fieldErrors
	if p.Title != nil && *p.Title == "" {
		errs.add("title", "must not be empty")
	}
	if p.Category != nil && *p.Category == "" {
		errs.add("category", "must not be empty")
	}
	if p.Description != nil {
		validateDescription(&errs, *p.Description)
	}
	if p.PriceAmount != nil {
		validateAmount(&errs, "priceAmount", *p.PriceAmount)
	}
	if p.PriceCurrency != nil && !p.PriceCurrency.Valid() {
		errs.add("priceCurrency", "must be either USD or INR")
	}
	if p.OriginalPrice != nil {
		validateAmount(&errs, "originalPrice", *p.OriginalPrice)
	}
	if p.Stock != nil && *p.Stock < 0 {
		errs.add("stock", "must be an integer >= 0")
	}
	if p.SKU != nil {
		validateSKU(&errs, *p.SKU)
	}
	if imageCount > MaxImages {
		errs.add("images", "at most %d images are allowed", MaxImages)
	}
	return errs.err()
}

// Apply returns a copy of cur with the supplied fields merged over it.
func (p ProductPatch) Apply(cur Product) Product {
	next := cur
	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Category != nil {
		next.Category = *p.Category
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.PriceAmount != nil {
		next.Price.Amount = *p.PriceAmount
	}
	if p.PriceCurrency != nil {
		next.Price.Currency = *p.PriceCurrency
	}
	if p.OriginalPrice != nil {
		next.OriginalPrice = *p.OriginalPrice
	}
	if p.Stock != nil {
		next.Stock = *p.Stock
	}
	if p.SKU != nil {
		next.SKU = *p.SKU
	}
	if p.Sizes != nil {
		next.Sizes = slices.Clone(p.Sizes)
	}
	if p.Colors != nil {
		next.Colors = slices.Clone(p.Colors)
	}
	if p.Features != nil {
		next.Features = slices.Clone(p.Features)
	}
	if p.Specifications != nil {
		next.Specifications = maps.Clone(p.Specifications)
	}
	if p.ShippingInfo != nil {
		next.ShippingInfo = *p.ShippingInfo
	}
	return next
}

// NormalizeSKU trims and upper-cases a stock keeping unit.
func NormalizeSKU(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func validateDescription(errs *fieldErrors, d string) {
	if utf8.RuneCountInString(d) > MaxDescriptionLength {
		errs.add("description", "max length is %d characters", MaxDescriptionLength)
	}
}

func validateAmount(errs *fieldErrors, field string, d decimal.Decimal) {
	switch {
	case d.IsNegative():
		errs.add(field, "must be a number >= 0")
	case significantDigits(d) > MaxAmountDigits:
		errs.add(field, "must have at most %d significant digits", MaxAmountDigits)
	}
}

// significantDigits counts the digits of d's plain notation, leading zeros
// excluded. Stored amounts are Decimal128, which holds at most 34.
func significantDigits(d decimal.Decimal) int {
	s := strings.Replace(d.Abs().String(), ".", "", 1)
	return len(strings.TrimLeft(s, "0"))
}

func validateSKU(errs *fieldErrors, sku string) {
	if utf8.RuneCountInString(sku) > MaxSKULength {
		errs.add("sku", "must be a string with max %d characters", MaxSKULength)
	}
}
