package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSecret = []byte("test-secret")

type CartServiceMock struct {
	lines []domain.CartLine
	err   error

	gotUserID   int64
	gotItem     domain.AddItem
	gotLineID   int64
	gotQuantity int
}

func (m *CartServiceMock) List(_ context.Context, userID int64) ([]domain.CartLine, error) {
	m.gotUserID = userID
	return m.lines, m.err
}

func (m *CartServiceMock) Add(_ context.Context, userID int64, item domain.AddItem) ([]domain.CartLine, error) {
	m.gotUserID, m.gotItem = userID, item
	return m.lines, m.err
}

func (m *CartServiceMock) Update(_ context.Context, userID, lineID int64, quantity int) ([]domain.CartLine, error) {
	m.gotUserID, m.gotLineID, m.gotQuantity = userID, lineID, quantity
	return m.lines, m.err
}

func (m *CartServiceMock) Remove(_ context.Context, userID, lineID int64) ([]domain.CartLine, error) {
	m.gotUserID, m.gotLineID = userID, lineID
	return m.lines, m.err
}

type OrderServiceMock struct {
	orderID uuid.UUID
	order   *domain.Order
	lines   []domain.OrderLineDetail
	orders  []domain.Order
	err     error

	gotUserID   int64
	gotRequest  domain.CheckoutRequest
	gotIdentity domain.Identity
	gotID       string
	gotStatus   string
	gotTracking string
}

func (m *OrderServiceMock) Checkout(_ context.Context, userID int64, req domain.CheckoutRequest) (uuid.UUID, error) {
	m.gotUserID, m.gotRequest = userID, req
	return m.orderID, m.err
}

func (m *OrderServiceMock) GetOrder(_ context.Context, rawID string, who domain.Identity) (*domain.Order, []domain.OrderLineDetail, error) {
	m.gotID, m.gotIdentity = rawID, who
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.order, m.lines, nil
}

func (m *OrderServiceMock) ListMyOrders(_ context.Context, userID int64) ([]domain.Order, error) {
	m.gotUserID = userID
	return m.orders, m.err
}

func (m *OrderServiceMock) ListAllOrders(context.Context) ([]domain.Order, error) {
	return m.orders, m.err
}

func (m *OrderServiceMock) SetStatus(_ context.Context, rawID, rawStatus string) error {
	m.gotID, m.gotStatus = rawID, rawStatus
	return m.err
}

func (m *OrderServiceMock) SetTracking(_ context.Context, rawID, trackingNumber string) error {
	m.gotID, m.gotTracking = rawID, trackingNumber
	return m.err
}

func newTestRouter(cart CartService, orders OrderService) http.Handler {
	return NewRouter(RouterConfig{
		Cart:           cart,
		Orders:         orders,
		Metrics:        metrics.NewRegistry(),
		Logger:         zap.NewNop(),
		JWTSecret:      testSecret,
		FrontendURL:    "http://shop.example",
		RequestTimeout: 5 * time.Second,
		CheckoutPerMin: 2,
	})
}

func signToken(t *testing.T, userID int64, admin bool) string {
	t.Helper()
	claims := Claims{
		UserID:  userID,
		IsAdmin: admin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
