package http

import (
	"context"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderService interface {
	Checkout(ctx context.Context, userID int64, req domain.CheckoutRequest) (uuid.UUID, error)
	GetOrder(ctx context.Context, rawID string, who domain.Identity) (*domain.Order, []domain.OrderLineDetail, error)
	ListMyOrders(ctx context.Context, userID int64) ([]domain.Order, error)
	ListAllOrders(ctx context.Context) ([]domain.Order, error)
	SetStatus(ctx context.Context, rawID, rawStatus string) error
	SetTracking(ctx context.Context, rawID, trackingNumber string) error
}

type OrdersHandler struct {
	orders OrderService
	logger *zap.Logger
}

func NewOrdersHandler(orders OrderService, l *zap.Logger) *OrdersHandler {
	return &OrdersHandler{orders: orders, logger: l}
}

type StoreDTO struct {
	StoreID      string `json:"store_id"`
	StoreName    string `json:"store_name"`
	StoreAddress string `json:"store_address"`
}

type CheckoutRequestDTO struct {
	CustomerName string    `json:"customerName"`
	Phone        string    `json:"phone"`
	Store        *StoreDTO `json:"store"`
}

type CheckoutResponse struct {
	Message string    `json:"message"`
	OrderID uuid.UUID `json:"orderId"`
}

type OrdersResponse struct {
	Orders []domain.Order `json:"orders"`
}

type OrderDetailResponse struct {
	Order      *domain.Order            `json:"order"`
	OrderItems []domain.OrderLineDetail `json:"orderItems"`
}

// POST /orders
func (h *OrdersHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}

	in := domain.CheckoutRequest{CustomerName: req.CustomerName, Phone: req.Phone}
	if req.Store != nil {
		in.Store = domain.Store{
			StoreID:      req.Store.StoreID,
			StoreName:    req.Store.StoreName,
			StoreAddress: req.Store.StoreAddress,
		}
	}

	orderID, err := h.orders.Checkout(r.Context(), IdentityFrom(r.Context()).UserID, in)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, CheckoutResponse{Message: "order created", OrderID: orderID})
}

// GET /orders/my
func (h *OrdersHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListMyOrders(r.Context(), IdentityFrom(r.Context()).UserID)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, OrdersResponse{Orders: orders})
}

// GET /orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, lines, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"), IdentityFrom(r.Context()))
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderDetailResponse{Order: order, OrderItems: lines})
}
