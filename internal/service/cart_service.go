package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type CartService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	metrics *metrics.Registry
	logger  *zap.Logger
	sfg     singleflight.Group // collapses concurrent misses for one user
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, m *metrics.Registry, l *zap.Logger) *CartService {
	return &CartService{
		repo:    repo,
		cache:   cache,
		metrics: m,
		logger:  l,
	}
}

// List serves the cart from cache when it can. The cache version is taken
// before the database read, so a read that overlaps a mutation or checkout
// can neither repopulate the cache nor be joined by a caller that arrives
// after the write.
func (s *CartService) List(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	version, err := s.cache.Version(ctx, userID)
	if err != nil {
		logger.WithTrace(ctx, s.logger).Warn("cart cache version failed", zap.Int64("user_id", userID), zap.Error(err))
		s.metrics.CartCacheMisses.Inc()
		return s.repo.ListCartLines(ctx, userID)
	}

	key := strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(version, 10)
	v, err, _ := s.sfg.Do(key, func() (any, error) {
		lines, err := s.cache.Get(ctx, userID)
		if err == nil {
			s.metrics.CartCacheHits.Inc()
			return lines, nil
		}
		s.metrics.CartCacheMisses.Inc()
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.WithTrace(ctx, s.logger).Warn("cart cache get failed", zap.Int64("user_id", userID), zap.Error(err))
		}

		lines, err = s.repo.ListCartLines(ctx, userID)
		if err != nil {
			return nil, err
		}

		err = s.cache.Set(ctx, userID, version, lines)
		switch {
		case errors.Is(err, cache.ErrStaleVersion):
			logger.WithTrace(ctx, s.logger).Debug("cart changed during read, not cached", zap.Int64("user_id", userID))
		case err != nil:
			logger.WithTrace(ctx, s.logger).Warn("cart cache set failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return lines, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.CartLine), nil
}

// Add folds item into the caller's matching line, or creates one.
func (s *CartService) Add(ctx context.Context, userID int64, item domain.AddItem) ([]domain.CartLine, error) {
	if item.ProductID <= 0 {
		return nil, domain.NewValidationError("productId", "productId is required")
	}
	if item.Quantity < 1 {
		return nil, domain.NewValidationError("quantity", "quantity must be at least 1")
	}
	if item.Quantity > domain.MaxQuantity {
		return nil, domain.NewValidationError("quantity", fmt.Sprintf("quantity must not exceed %d", domain.MaxQuantity))
	}
	if item.SpecificationID != nil && *item.SpecificationID <= 0 {
		item.SpecificationID = nil
	}
	item.Options = item.Options.Normalize()

	if err := s.repo.UpsertCartLine(ctx, userID, item); err != nil {
		return nil, err
	}
	s.metrics.CartMutations.WithLabelValues("add").Inc()
	return s.afterMutation(ctx, userID)
}

// Update sets a line's quantity. Zero removes the line.
func (s *CartService) Update(ctx context.Context, userID, lineID int64, quantity int) ([]domain.CartLine, error) {
	if quantity < 0 {
		return nil, domain.NewValidationError("quantity", "quantity must not be negative")
	}
	if quantity > domain.MaxQuantity {
		return nil, domain.NewValidationError("quantity", fmt.Sprintf("quantity must not exceed %d", domain.MaxQuantity))
	}
	if quantity == 0 {
		return s.Remove(ctx, userID, lineID)
	}

	if err := s.repo.UpdateCartLineQuantity(ctx, userID, lineID, quantity); err != nil {
		return nil, err
	}
	s.metrics.CartMutations.WithLabelValues("update").Inc()
	return s.afterMutation(ctx, userID)
}

func (s *CartService) Remove(ctx context.Context, userID, lineID int64) ([]domain.CartLine, error) {
	if err := s.repo.DeleteCartLine(ctx, userID, lineID); err != nil {
		return nil, err
	}
	s.metrics.CartMutations.WithLabelValues("remove").Inc()
	return s.afterMutation(ctx, userID)
}

func (s *CartService) afterMutation(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	s.Invalidate(ctx, userID)
	return s.repo.ListCartLines(ctx, userID)
}

// Invalidate bumps the cart version and drops the cached cart. Failures are
// logged; the entry expires on its own.
func (s *CartService) Invalidate(ctx context.Context, userID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("cart cache invalidate failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}
