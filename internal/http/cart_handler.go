package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CartService interface {
	List(ctx context.Context, userID int64) ([]domain.CartLine, error)
	Add(ctx context.Context, userID int64, item domain.AddItem) ([]domain.CartLine, error)
	Update(ctx context.Context, userID, lineID int64, quantity int) ([]domain.CartLine, error)
	Remove(ctx context.Context, userID, lineID int64) ([]domain.CartLine, error)
}

type CartHandler struct {
	cart   CartService
	logger *zap.Logger
}

func NewCartHandler(cart CartService, l *zap.Logger) *CartHandler {
	return &CartHandler{cart: cart, logger: l}
}

type AddCartItemRequest struct {
	ProductID       int64                      `json:"productId"`
	SpecificationID *int64                     `json:"specificationId"`
	Options         map[string]json.RawMessage `json:"options"`
	Quantity        *int                       `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity"`
}

type CartResponse struct {
	Message string            `json:"message,omitempty"`
	Cart    []domain.CartLine `json:"cart"`
}

// GET /cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := IdentityFrom(r.Context()).UserID
	lines, err := h.cart.List(r.Context(), userID)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, CartResponse{Cart: lines})
}

// POST /cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	options, err := optionValues(req.Options)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}

	item := domain.AddItem{
		ProductID:       req.ProductID,
		SpecificationID: req.SpecificationID,
		Options:         options,
		Quantity:        1,
	}
	if req.Quantity != nil {
		item.Quantity = *req.Quantity
	}

	lines, err := h.cart.Add(r.Context(), IdentityFrom(r.Context()).UserID, item)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, CartResponse{Message: "added to cart", Cart: lines})
}

// PUT /cart/{id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	lineID, ok := lineIDParam(r)
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", domain.ErrCartLineNotFound.Error())
		return
	}

	var req UpdateCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "validation_error", "quantity is required")
		return
	}

	lines, err := h.cart.Update(r.Context(), IdentityFrom(r.Context()).UserID, lineID, *req.Quantity)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, CartResponse{Message: "cart updated", Cart: lines})
}

// DELETE /cart/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	lineID, ok := lineIDParam(r)
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", domain.ErrCartLineNotFound.Error())
		return
	}

	lines, err := h.cart.Remove(r.Context(), IdentityFrom(r.Context()).UserID, lineID)
	if err != nil {
		respondDomainError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, CartResponse{Message: "cart item removed", Cart: lines})
}

func lineIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// optionValues flattens option values to strings. Numbers and booleans keep
// their JSON spelling, so {"size":42} and {"size":"42"} pick the same line.
func optionValues(raw map[string]json.RawMessage) (domain.Options, error) {
	if raw == nil {
		return nil, nil
	}
	out := make(domain.Options, len(raw))
	for name, value := range raw {
		value = bytes.TrimSpace(value)
		var s string
		switch {
		case len(value) > 0 && value[0] == '"':
			if err := json.Unmarshal(value, &s); err != nil {
				return nil, domain.NewValidationError("options."+name, "invalid option value")
			}
		case bytes.Equal(value, []byte("true")), bytes.Equal(value, []byte("false")):
			s = string(value)
		case len(value) > 0 && (value[0] == '-' || (value[0] >= '0' && value[0] <= '9')):
			s = string(value)
		default:
			return nil, domain.NewValidationError("options."+name,
				fmt.Sprintf("option %q must be a string, number or boolean", name))
		}
		out[name] = s
	}
	return out, nil
}
