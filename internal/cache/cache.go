package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// CartCache holds a read-through copy of a user's cart lines.
//
// Every write to a cart bumps a per-user version. A reader takes the version
// before it loads the cart from the database and hands it back to Set, which
// stores the lines only while that version is still current. A read that
// raced a mutation can therefore never repopulate the cache with the old cart.
type CartCache interface {
	Get(ctx context.Context, userID int64) ([]domain.CartLine, error)
	Version(ctx context.Context, userID int64) (int64, error)
	Set(ctx context.Context, userID, version int64, lines []domain.CartLine) error
	// Invalidate bumps the version and drops the cached lines.
	Invalidate(ctx context.Context, userID int64) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrStaleVersion is returned by Set when the cart changed after the
	// caller read its version. Nothing is written.
	ErrStaleVersion = errors.New("cart version is stale")
)
