package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var phonePattern = regexp.MustCompile(`^09\d{8}$`)

// CartInvalidator drops a user's cached cart once checkout has consumed it.
type CartInvalidator interface {
	Invalidate(ctx context.Context, userID int64)
}

type OrderService struct {
	tx      repository.Transactor
	orders  repository.OrderReader
	carts   CartInvalidator
	prices  *pricing.Resolver
	metrics *metrics.Registry
	logger  *zap.Logger
	now     func() time.Time
}

func NewOrderService(
	tx repository.Transactor,
	orders repository.OrderReader,
	carts CartInvalidator,
	prices *pricing.Resolver,
	m *metrics.Registry,
	l *zap.Logger,
) *OrderService {
	return &OrderService{
		tx:      tx,
		orders:  orders,
		carts:   carts,
		prices:  prices,
		metrics: m,
		logger:  l,
		now:     time.Now,
	}
}

// Checkout turns the caller's whole cart into a pending order. Either the
// order, its lines, the emptied cart and the OrderCreated event are all
// committed, or nothing is.
func (s *OrderService) Checkout(ctx context.Context, userID int64, req domain.CheckoutRequest) (uuid.UUID, error) {
	req = normalizeCheckout(req)
	if err := validateCheckout(req); err != nil {
		s.metrics.Checkouts.WithLabelValues("rejected").Inc()
		return uuid.Nil, err
	}

	order := &domain.Order{
		ID:           uuid.New(),
		UserID:       userID,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		StoreID:      req.Store.StoreID,
		StoreName:    req.Store.StoreName,
		StoreAddress: req.Store.StoreAddress,
		Status:       domain.OrderStatusPending,
	}

	err := s.tx.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		lines, err := uow.LockCartLines(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}

		if err := uow.InsertOrder(ctx, order); err != nil {
			return err
		}

		event := OrderCreatedEvent{
			OrderID:      order.ID,
			UserID:       userID,
			CustomerName: order.CustomerName,
			StoreID:      order.StoreID,
			Items:        make([]OrderCreatedItem, 0, len(lines)),
			CreatedAt:    order.CreatedAt,
		}
		lineIDs := make([]int64, 0, len(lines))

		for _, cl := range lines {
			price, err := s.prices.Resolve(ctx, uow, cl)
			if err != nil {
				return err
			}
			optionID, err := uow.FindOptionID(ctx, cl.ProductID, cl.Options)
			if err != nil {
				return err
			}

			ol := &domain.OrderLine{
				OrderID:         order.ID,
				ProductID:       cl.ProductID,
				SpecificationID: cl.SpecificationID,
				OptionID:        optionID,
				Options:         cl.Options,
				Quantity:        cl.Quantity,
				UnitPrice:       price.UnitPrice,
			}
			if err := uow.InsertOrderLine(ctx, ol); err != nil {
				return err
			}

			lineIDs = append(lineIDs, cl.ID)
			event.TotalAmount += price.UnitPrice * float64(cl.Quantity)
			event.Items = append(event.Items, OrderCreatedItem{
				ProductID:       ol.ProductID,
				SpecificationID: ol.SpecificationID,
				OptionID:        ol.OptionID,
				Options:         ol.Options,
				Quantity:        ol.Quantity,
				UnitPrice:       ol.UnitPrice,
			})
		}

		deleted, err := uow.DeleteCartLines(ctx, userID, lineIDs)
		if err != nil {
			return err
		}
		if deleted != int64(len(lineIDs)) {
			return fmt.Errorf("cart cleared %d of %d locked lines", deleted, len(lineIDs))
		}

		return insertEvent(ctx, uow, order.ID, EventOrderCreated, event)
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			s.metrics.Checkouts.WithLabelValues("rejected").Inc()
		} else {
			s.metrics.Checkouts.WithLabelValues("failed").Inc()
		}
		return uuid.Nil, err
	}

	s.metrics.Checkouts.WithLabelValues("committed").Inc()
	s.carts.Invalidate(ctx, userID)
	logger.WithTrace(ctx, s.logger).Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.Int64("user_id", userID))
	return order.ID, nil
}

// GetOrder returns an order with its lines. Malformed ids read as not found.
func (s *OrderService) GetOrder(ctx context.Context, rawID string, who domain.Identity) (*domain.Order, []domain.OrderLineDetail, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, nil, domain.ErrOrderNotFound
	}

	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !who.CanView(order.UserID) {
		return nil, nil, fmt.Errorf("%w: order belongs to another user", domain.ErrForbidden)
	}

	lines, err := s.orders.ListOrderLines(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return order, lines, nil
}

func (s *OrderService) ListMyOrders(ctx context.Context, userID int64) ([]domain.Order, error) {
	return s.orders.ListOrdersByUser(ctx, userID)
}

func (s *OrderService) ListAllOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders.ListAllOrders(ctx)
}

// SetStatus moves an order along pending -> processing -> completed, or to
// cancelled from either non-terminal status. Setting the current status again
// changes nothing and emits no event.
func (s *OrderService) SetStatus(ctx context.Context, rawID, rawStatus string) error {
	target, ok := domain.ParseOrderStatus(rawStatus)
	if !ok {
		return domain.NewValidationError("order_status", "invalid order status")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return domain.ErrOrderNotFound
	}

	return s.tx.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		order, err := uow.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status == target {
			return nil
		}
		if !domain.CanTransitionTo(order.Status, target) {
			return fmt.Errorf("%w: %s to %s", domain.ErrIllegalTransition, order.Status, target)
		}

		if err := uow.UpdateOrderStatus(ctx, id, target); err != nil {
			return err
		}
		return insertEvent(ctx, uow, id, EventOrderStatusChanged, OrderStatusChangedEvent{
			OrderID:   id,
			UserID:    order.UserID,
			From:      order.Status,
			To:        target,
			ChangedAt: s.now().UTC(),
		})
	})
}

func (s *OrderService) SetTracking(ctx context.Context, rawID, trackingNumber string) error {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return domain.NewValidationError("tracking_number", "tracking_number is required")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return domain.ErrOrderNotFound
	}

	return s.tx.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		order, err := uow.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := uow.UpdateTrackingNumber(ctx, id, trackingNumber); err != nil {
			return err
		}
		return insertEvent(ctx, uow, id, EventOrderTrackingUpdated, OrderTrackingUpdatedEvent{
			OrderID:        id,
			UserID:         order.UserID,
			TrackingNumber: trackingNumber,
			UpdatedAt:      s.now().UTC(),
		})
	})
}

func normalizeCheckout(req domain.CheckoutRequest) domain.CheckoutRequest {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Store.StoreID = strings.TrimSpace(req.Store.StoreID)
	req.Store.StoreName = strings.TrimSpace(req.Store.StoreName)
	req.Store.StoreAddress = strings.TrimSpace(req.Store.StoreAddress)
	return req
}

// phone format is checked before presence of the other fields
func validateCheckout(req domain.CheckoutRequest) error {
	if !phonePattern.MatchString(req.Phone) {
		return domain.ErrInvalidPhone
	}
	switch {
	case req.CustomerName == "":
		return domain.NewValidationError("customerName", "customerName is required")
	case req.Store.StoreID == "":
		return domain.NewValidationError("store.store_id", "store_id is required")
	case req.Store.StoreName == "":
		return domain.NewValidationError("store.store_name", "store_name is required")
	}
	return nil
}

func insertEvent(ctx context.Context, uow repository.UnitOfWork, orderID uuid.UUID, eventType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return uow.InsertOutboxEvent(ctx, orderID.String(), eventType, b)
}
