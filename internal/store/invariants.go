package store

import (
	"github.com/go-faster/errors"

	"github.com/fairyhunter13/product-catalog-service/internal/catalog"
	"github.com/fairyhunter13/product-catalog-service/internal/model"
)

// ErrInvariant is returned when a record reaching the store breaks a
// catalog invariant the orchestrator should already have enforced.
var ErrInvariant = catalog.ErrInvariant

func checkInvariants(p model.Product) error {
	switch {
	case p.Price.Amount.IsNegative():
		return errors.Wrap(ErrInvariant, "negative price")
	case p.OriginalPrice.IsNegative():
		return errors.Wrap(ErrInvariant, "negative original price")
	case p.Stock < 0:
		return errors.Wrap(ErrInvariant, "negative stock")
	case len(p.Images) > model.MaxImages:
		return errors.Wrapf(ErrInvariant, "%d images", len(p.Images))
	case p.Rating < 0 || p.Rating > model.MaxRating:
		return errors.Wrapf(ErrInvariant, "rating %v", p.Rating)
	case p.Seller == "":
		return errors.Wrap(ErrInvariant, "missing seller")
	}
	return nil
}

func duplicateSKU(sku string) error {
	return errors.Wrapf(catalog.ErrDuplicateKey, "sku %q", sku)
}
