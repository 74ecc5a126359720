package events

import (
	"context"
	"time"
)

const (
	ExchangeName = "bookstore.events"
	ExchangeType = "topic"

	// DeadLetterExchange receives deliveries that failed after a redelivery
	DeadLetterExchange = "bookstore.events.dlx"

	EventVersion = "1.0.0"

	// Published by the catalog
	EventTypeProductRegistered = "catalog.product.registered"
	EventTypeProductUpdated    = "catalog.product.updated"

	// Consumed by the catalog
	EventTypeLikeAdded   = "product.like.added"
	EventTypeLikeRemoved = "product.like.removed"
)

// Event is the envelope of every message on the exchange
type Event[P any] struct {
	EventID       string `json:"event_id"`
	EventType     string `json:"event_type"`
	EventVersion  string `json:"event_version"`
	Timestamp     string `json:"timestamp"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Payload       P      `json:"payload"`
}

// ProductRegistered announces a new book product
type ProductRegistered struct {
	ProductID     int64    `json:"product_id"`
	Title         string   `json:"title"`
	Author        string   `json:"author"`
	ISBN13        string   `json:"isbn13"`
	PriceStandard int64    `json:"price_standard"`
	PriceSale     int64    `json:"price_sale"`
	Inventory     int64    `json:"inventory"`
	State         string   `json:"state"`
	Categories    []string `json:"categories"`
	Tags          []string `json:"tags"`
}

// ProductUpdated lists which fields of a product changed
type ProductUpdated struct {
	ProductID     int64    `json:"product_id"`
	FieldsChanged []string `json:"fields_changed"`
}

// LikeChanged is the payload of both like events
type LikeChanged struct {
	UserID    int64 `json:"user_id"`
	ProductID int64 `json:"product_id"`
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

type correlationKey struct{}

// WithCorrelationID attaches a correlation id that published events carry along
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
