package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// SpecificationPrice returns the price of a product specification. ok is false
// when the row does not exist.
func (q *queries) SpecificationPrice(ctx context.Context, specificationID int64) (float64, bool, error) {
	return q.price(ctx, `SELECT price FROM product_specifications WHERE id = $1`, specificationID)
}

// ProductPrice returns the base price of a product. ok is false when the row
// does not exist.
func (q *queries) ProductPrice(ctx context.Context, productID int64) (float64, bool, error) {
	return q.price(ctx, `SELECT price FROM products WHERE id = $1`, productID)
}

func (q *queries) price(ctx context.Context, query string, id int64) (float64, bool, error) {
	var price float64
	err := q.db.QueryRowContext(ctx, query, id).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query price for id %d: %w", id, err)
	}
	return price, true, nil
}

// FindOptionID returns the first catalog option of productID that matches one
// of the chosen options, or nil when nothing matches.
func (q *queries) FindOptionID(ctx context.Context, productID int64, opts domain.Options) (*int64, error) {
	if len(opts) == 0 {
		return nil, nil
	}

	query := `SELECT id, option_name, option_value FROM product_options WHERE product_id = $1 ORDER BY id`
	rows, err := q.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("query product options: %w", err)
	}
	defer rows.Close()

	normalized := opts.Normalize()
	var found *int64
	for rows.Next() {
		var (
			id          int64
			name, value string
		)
		if err := rows.Scan(&id, &name, &value); err != nil {
			return nil, fmt.Errorf("scan product option: %w", err)
		}
		if v, ok := normalized[name]; ok && found == nil && v == value {
			found = &id
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return found, nil
}
