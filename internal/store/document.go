package store

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fairyhunter13/product-catalog-service/internal/model"
)

type priceDoc struct {
	Amount   primitive.Decimal128 `bson:"amount"`
	Currency string               `bson:"currency"`
}

type imageDoc struct {
	URL       string `bson:"url"`
	Thumbnail string `bson:"thumbnail"`
	FileID    string `bson:"fileId"`
}

type shippingDoc struct {
	FreeShipping      bool   `bson:"freeShipping"`
	EstimatedDelivery string `bson:"estimatedDelivery,omitempty"`
	Returns           string `bson:"returns,omitempty"`
}

// productDoc is the stored shape of a product. Money is Decimal128 so range
// queries compare numerically without float rounding.
type productDoc struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty"`
	Title          string               `bson:"title"`
	Category       string               `bson:"category"`
	Description    string               `bson:"description"`
	Price          priceDoc             `bson:"price"`
	OriginalPrice  primitive.Decimal128 `bson:"originalPrice"`
	Stock          int64                `bson:"stock"`
	SKU            string               `bson:"sku,omitempty"`
	Rating         float64              `bson:"rating"`
	ReviewCount    int64                `bson:"reviewCount"`
	Images         []imageDoc           `bson:"images"`
	Sizes          []string             `bson:"sizes,omitempty"`
	Colors         []string             `bson:"colors,omitempty"`
	Features       []string             `bson:"features,omitempty"`
	Specifications map[string]string    `bson:"specifications,omitempty"`
	ShippingInfo   shippingDoc          `bson:"shippingInfo"`
	Seller         string               `bson:"seller"`
	Version        int64                `bson:"version"`
	CreatedAt      time.Time            `bson:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt"`
}

func toDoc(p model.Product) (productDoc, error) {
	amount, err := toDecimal128(p.Price.Amount)
	if err != nil {
		return productDoc{}, err
	}
	original, err := toDecimal128(p.OriginalPrice)
	if err != nil {
		return productDoc{}, err
	}
	d := productDoc{
		Title:          p.Title,
		Category:       p.Category,
		Description:    p.Description,
		Price:          priceDoc{Amount: amount, Currency: string(p.Price.Currency)},
		OriginalPrice:  original,
		Stock:          p.Stock,
		SKU:            p.SKU,
		Rating:         p.Rating,
		ReviewCount:    p.ReviewCount,
		Images:         make([]imageDoc, 0, len(p.Images)),
		Sizes:          p.Sizes,
		Colors:         p.Colors,
		Features:       p.Features,
		Specifications: p.Specifications,
		ShippingInfo:   shippingDoc(p.ShippingInfo),
		Seller:         p.Seller,
		Version:        p.Version,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.ID != "" {
		if oid, err := primitive.ObjectIDFromHex(p.ID); err == nil {
			d.ID = oid
		}
	}
	for _, im := range p.Images {
		d.Images = append(d.Images, imageDoc(im))
	}
	return d, nil
}

func (d productDoc) product() (model.Product, error) {
	amount, err := fromDecimal128(d.Price.Amount)
	if err != nil {
		return model.Product{}, err
	}
	original, err := fromDecimal128(d.OriginalPrice)
	if err != nil {
		return model.Product{}, err
	}
	p := model.Product{
		ID:             d.ID.Hex(),
		Title:          d.Title,
		Category:       d.Category,
		Description:    d.Description,
		Price:          model.Price{Amount: amount, Currency: model.Currency(d.Price.Currency)},
		OriginalPrice:  original,
		Stock:          d.Stock,
		SKU:            d.SKU,
		Rating:         d.Rating,
		ReviewCount:    d.ReviewCount,
		Images:         make([]model.Image, 0, len(d.Images)),
		Sizes:          d.Sizes,
		Colors:         d.Colors,
		Features:       d.Features,
		Specifications: d.Specifications,
		ShippingInfo:   model.ShippingInfo(d.ShippingInfo),
		Seller:         d.Seller,
		Version:        d.Version,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}
	for _, im := range d.Images {
		p.Images = append(p.Images, model.Image(im))
	}
	return p, nil
}

// mutable returns the fields an update may overwrite. Identity, owner,
// creation time and version are left to the store.
func (d productDoc) mutable() bson.M {
	m := bson.M{
		"title":          d.Title,
		"category":       d.Category,
		"description":    d.Description,
		"price":          d.Price,
		"originalPrice":  d.OriginalPrice,
		"stock":          d.Stock,
		"rating":         d.Rating,
		"reviewCount":    d.ReviewCount,
		"images":         d.Images,
		"sizes":          d.Sizes,
		"colors":         d.Colors,
		"features":       d.Features,
		"specifications": d.Specifications,
		"shippingInfo":   d.ShippingInfo,
	}
	if d.SKU != "" {
		m["sku"] = d.SKU
	}
	return m
}
