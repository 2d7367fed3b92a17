package repository

import (
	"context"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// CartRepository covers the cart mutations that do not need a transaction.
// Each call is a single statement scoped to userID.
type CartRepository interface {
	ListCartLines(ctx context.Context, userID int64) ([]domain.CartLine, error)
	UpsertCartLine(ctx context.Context, userID int64, item domain.AddItem) error
	UpdateCartLineQuantity(ctx context.Context, userID, lineID int64, quantity int) error
	DeleteCartLine(ctx context.Context, userID, lineID int64) error
}

type OrderReader interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]domain.OrderLineDetail, error)
	ListOrdersByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	ListAllOrders(ctx context.Context) ([]domain.Order, error)
}

// UnitOfWork is the set of statements available inside WithinTx. Everything
// done through it commits or rolls back together.
type UnitOfWork interface {
	LockCartLines(ctx context.Context, userID int64) ([]domain.CartLine, error)
	DeleteCartLines(ctx context.Context, userID int64, lineIDs []int64) (int64, error)

	SpecificationPrice(ctx context.Context, specificationID int64) (float64, bool, error)
	ProductPrice(ctx context.Context, productID int64) (float64, bool, error)
	FindOptionID(ctx context.Context, productID int64, opts domain.Options) (*int64, error)

	InsertOrder(ctx context.Context, order *domain.Order) error
	InsertOrderLine(ctx context.Context, line *domain.OrderLine) error
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	UpdateTrackingNumber(ctx context.Context, id uuid.UUID, trackingNumber string) error

	InsertOutboxEvent(ctx context.Context, aggregateID, eventType string, payload []byte) error
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}
