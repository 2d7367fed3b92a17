package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Cart           CartService
	Orders         OrderService
	Metrics        *metrics.Registry
	Logger         *zap.Logger
	JWTSecret      []byte
	FrontendURL    string
	RequestTimeout time.Duration
	CheckoutPerMin int
	// Health reports readiness; nil means always healthy.
	Health func(r *http.Request) error
}

// NewRouter builds the full HTTP handler: CORS and tracing around the chi
// router with the API routes.
func NewRouter(cfg RouterConfig) http.Handler {
	cartHandler := NewCartHandler(cfg.Cart, cfg.Logger)
	ordersHandler := NewOrdersHandler(cfg.Orders, cfg.Logger)
	adminHandler := NewAdminHandler(cfg.Orders, cfg.Logger)
	limiter := NewUserRateLimiter(cfg.CheckoutPerMin)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	// identity only annotates the request; RequireUser and RequireAdmin reject
	r.Use(AuthMiddleware(cfg.JWTSecret))
	r.Use(RequestLogger(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r); err != nil {
				respondError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Route("/cart", func(r chi.Router) {
		r.Use(RequireUser)
		r.Get("/", cartHandler.GetCart)
		r.Post("/", cartHandler.AddItem)
		r.Put("/{id}", cartHandler.UpdateQuantity)
		r.Delete("/{id}", cartHandler.RemoveItem)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Use(RequireUser)
		r.With(limiter.Limit).Post("/", ordersHandler.Checkout)
		r.Get("/my", ordersHandler.ListMyOrders)
		r.Get("/{id}", ordersHandler.GetOrder)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireAdmin)
		r.Get("/me", adminHandler.Me)
		r.Get("/orders", adminHandler.ListOrders)
		r.Put("/orders/{id}/status", adminHandler.UpdateStatus)
		r.Put("/orders/{id}/tracking", adminHandler.UpdateTracking)
	})

	traced := otelhttp.NewHandler(r, "storefront")

	return cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	}).Handler(traced)
}
