package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Topics downstream systems subscribe to.
const (
	TopicProductCreated      = "catalog.product.created"
	TopicNotificationCreated = "catalog.notification.product_created"
	TopicProductUpdated      = "catalog.product.updated"
	TopicProductDeleted      = "catalog.product.deleted"
)

// DomainEvent is the envelope handed to the event publisher. Key groups
// events that must keep per-topic order, usually the product id.
type DomainEvent struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	Key        string    `json:"-"`
	Payload    any       `json:"payload"`
	ProducedAt time.Time `json:"producedAt"`
}

// ProductCreatedNotification is the payload of TopicNotificationCreated.
type ProductCreatedNotification struct {
	Username string          `json:"username"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Email    string          `json:"email"`
}

// ProductDeleted is the payload of TopicProductDeleted.
type ProductDeleted struct {
	ID string `json:"id"`
}
