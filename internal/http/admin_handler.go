package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type AdminHandler struct {
	orders OrderService
	logger *zap.Logger
}

func NewAdminHandler(orders OrderService, l *zap.Logger) *AdminHandler {
	return &AdminHandler{orders: orders, logger: l}
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UpdateStatusRequest struct {
	OrderStatus string `json:"order_status"`
}

type UpdateTrackingRequest struct {
	TrackingNumber string `json:"tracking_number"`
}

// GET /admin/me
func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	who := IdentityFrom(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{"id": who.UserID, "isAdmin": who.IsAdmin},
	})
}

// GET /admin/orders
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAllOrders(r.Context())
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, OrdersResponse{Orders: orders})
}

// PUT /admin/orders/{id}/status
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	if req.OrderStatus == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "order_status is required")
		return
	}

	if err := h.orders.SetStatus(r.Context(), chi.URLParam(r, "id"), req.OrderStatus); err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "order status updated"})
}

// PUT /admin/orders/{id}/tracking
func (h *AdminHandler) UpdateTracking(w http.ResponseWriter, r *http.Request) {
	var req UpdateTrackingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}

	if err := h.orders.SetTracking(r.Context(), chi.URLParam(r, "id"), req.TrackingNumber); err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, MessageResponse{Message: "tracking number updated"})
}
