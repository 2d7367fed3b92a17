// Package pricing decides the unit price an order line is sold at.
package pricing

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
)

type Policy string

const (
	PolicyReject Policy = "reject"
	PolicyZero   Policy = "zero"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyReject, PolicyZero:
		return Policy(s), nil
	case "":
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("unknown price fallback policy %q", s)
	}
}

type Source string

const (
	SourceSpecification Source = "specification"
	SourceProduct       Source = "product"
	SourceZeroFallback  Source = "zero_fallback"
)

type Price struct {
	UnitPrice float64
	Source    Source
}

var ErrPriceUnresolved = domain.NewValidationError("price", "price could not be determined for a cart item")

// PriceSource looks prices up in the catalog. ok is false when the row is absent.
type PriceSource interface {
	SpecificationPrice(ctx context.Context, specificationID int64) (float64, bool, error)
	ProductPrice(ctx context.Context, productID int64) (float64, bool, error)
}

// FallbackCounter is incremented for every line priced by the zero policy.
type FallbackCounter interface {
	Inc()
}

type Resolver struct {
	policy   Policy
	logger   *zap.Logger
	fallback FallbackCounter
}

func NewResolver(policy Policy, logger *zap.Logger, fallback FallbackCounter) *Resolver {
	return &Resolver{policy: policy, logger: logger, fallback: fallback}
}

// Resolve prices line from its specification, then from its product, and
// finally by policy.
func (r *Resolver) Resolve(ctx context.Context, src PriceSource, line domain.CartLine) (Price, error) {
	if line.SpecificationID != nil {
		price, ok, err := src.SpecificationPrice(ctx, *line.SpecificationID)
		if err != nil {
			return Price{}, fmt.Errorf("lookup specification price: %w", err)
		}
		if ok {
			return Price{UnitPrice: price, Source: SourceSpecification}, nil
		}
	}

	price, ok, err := src.ProductPrice(ctx, line.ProductID)
	if err != nil {
		return Price{}, fmt.Errorf("lookup product price: %w", err)
	}
	if ok {
		return Price{UnitPrice: price, Source: SourceProduct}, nil
	}

	if r.policy != PolicyZero {
		return Price{}, ErrPriceUnresolved
	}

	r.logger.Warn("no price found, selling at zero",
		zap.Int64("product_id", line.ProductID),
		zap.Int64("cart_line_id", line.ID))
	if r.fallback != nil {
		r.fallback.Inc()
	}
	return Price{UnitPrice: 0, Source: SourceZeroFallback}, nil
}
