package domain

import (
	"time"

	"github.com/google/uuid"
)

type Order struct {
	ID             uuid.UUID   `json:"id"`
	UserID         int64       `json:"user_id"`
	CustomerName   string      `json:"customer_name"`
	Phone          string      `json:"phone"`
	StoreID        string      `json:"store_id"`
	StoreName      string      `json:"store_name"`
	StoreAddress   string      `json:"store_address"`
	Status         OrderStatus `json:"order_status"`
	TrackingNumber *string     `json:"tracking_number"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// OrderLine is written once at checkout. UnitPrice is the price frozen at
// commit time and is never recomputed from the catalog.
type OrderLine struct {
	ID              int64     `json:"id"`
	OrderID         uuid.UUID `json:"order_id"`
	ProductID       int64     `json:"product_id"`
	SpecificationID *int64    `json:"specification_id"`
	OptionID        *int64    `json:"option_id"`
	Options         Options   `json:"options"`
	Quantity        int       `json:"quantity"`
	UnitPrice       float64   `json:"unit_price"`
}

// OrderLineDetail joins an order line with specification and option display data.
type OrderLineDetail struct {
	OrderLine
	SpecName    *string  `json:"spec_name"`
	SpecPrice   *float64 `json:"spec_price"`
	OptionName  *string  `json:"option_name"`
	OptionValue *string  `json:"option_value"`
}

// Store is the pickup convenience store chosen at checkout.
type Store struct {
	StoreID      string
	StoreName    string
	StoreAddress string
}

type CheckoutRequest struct {
	CustomerName string
	Phone        string
	Store        Store
}
