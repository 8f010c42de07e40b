package catalog

import (
	"context"

	"github.com/fairyhunter13/product-catalog-service/internal/model"
)

// AssetStore stores product images. Delete of an unknown handle returns ErrNoAsset.
type AssetStore interface {
	Upload(ctx context.Context, blob model.Blob) (model.Image, error)
	Delete(ctx context.Context, fileID string) error
}

// CatalogStore persists product records.
//
// Create assigns id, timestamps and version 1. Update replaces the mutable
// fields of p only if the stored version still equals expectedVersion,
// returning ErrStaleVersion otherwise. Missing records yield ErrNoRecord and
// sku collisions ErrDuplicateKey.
type CatalogStore interface {
	Create(ctx context.Context, p model.Product) (model.Product, error)
	GetByID(ctx context.Context, id string) (model.Product, error)
	Update(ctx context.Context, p model.Product, expectedVersion int64) (model.Product, error)
	Delete(ctx context.Context, id string) error
}

// Publisher delivers domain events to the bus with at-least-once intent.
// Consumers must be idempotent on (topic, key).
type Publisher interface {
	Publish(ctx context.Context, ev model.DomainEvent) error
}
