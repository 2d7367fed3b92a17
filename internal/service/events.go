package service

import (
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

const (
	EventOrderCreated         = "OrderCreated"
	EventOrderStatusChanged   = "OrderStatusChanged"
	EventOrderTrackingUpdated = "OrderTrackingUpdated"
)

type OrderCreatedEvent struct {
	OrderID      uuid.UUID          `json:"order_id"`
	UserID       int64              `json:"user_id"`
	CustomerName string             `json:"customer_name"`
	StoreID      string             `json:"store_id"`
	Items        []OrderCreatedItem `json:"items"`
	TotalAmount  float64            `json:"total_amount"`
	CreatedAt    time.Time          `json:"created_at"`
}

type OrderCreatedItem struct {
	ProductID       int64          `json:"product_id"`
	SpecificationID *int64         `json:"specification_id,omitempty"`
	OptionID        *int64         `json:"option_id,omitempty"`
	Options         domain.Options `json:"options,omitempty"`
	Quantity        int            `json:"quantity"`
	UnitPrice       float64        `json:"unit_price"`
}

type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID          `json:"order_id"`
	UserID    int64              `json:"user_id"`
	From      domain.OrderStatus `json:"from"`
	To        domain.OrderStatus `json:"to"`
	ChangedAt time.Time          `json:"changed_at"`
}

type OrderTrackingUpdatedEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	UserID         int64     `json:"user_id"`
	TrackingNumber string    `json:"tracking_number"`
	UpdatedAt      time.Time `json:"updated_at"`
}
