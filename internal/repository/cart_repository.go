package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/lib/pq"
)

const cartColumns = `id, user_id, product_id, specification_id, options, quantity, created_at, updated_at`

func (q *queries) ListCartLines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	query := `SELECT ` + cartColumns + ` FROM cart_items WHERE user_id = $1 ORDER BY id`
	return q.selectCartLines(ctx, query, userID)
}

// LockCartLines reads the cart and row-locks every line until the surrounding
// transaction ends, so a concurrent checkout of the same cart blocks.
func (q *queries) LockCartLines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	query := `SELECT ` + cartColumns + ` FROM cart_items WHERE user_id = $1 ORDER BY id FOR UPDATE`
	return q.selectCartLines(ctx, query, userID)
}

// UpsertCartLine inserts a line or adds to the quantity of the line sharing its
// merge key, in one statement guarded by uq_cart_items_merge_key.
func (q *queries) UpsertCartLine(ctx context.Context, userID int64, item domain.AddItem) error {
	key := domain.NewMergeKey(userID, item)

	query := `INSERT INTO cart_items (user_id, product_id, specification_id, options, quantity)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (user_id, product_id, (COALESCE(specification_id, 0)), options)
	          DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()`

	_, err := q.db.ExecContext(ctx, query,
		key.UserID,
		key.ProductID,
		nullInt64(item.SpecificationID),
		key.OptionsKey,
		item.Quantity)
	if isOutOfRange(err) {
		return domain.NewValidationError("quantity", "quantity is too large")
	}
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}
	return nil
}

func (q *queries) UpdateCartLineQuantity(ctx context.Context, userID, lineID int64, quantity int) error {
	query := `UPDATE cart_items SET quantity = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3`

	res, err := q.db.ExecContext(ctx, query, quantity, lineID, userID)
	if isOutOfRange(err) {
		return domain.NewValidationError("quantity", "quantity is too large")
	}
	if err != nil {
		return fmt.Errorf("update cart item quantity: %w", err)
	}
	return expectAffected(res, domain.ErrCartLineNotFound)
}

func (q *queries) DeleteCartLine(ctx context.Context, userID, lineID int64) error {
	query := `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`

	res, err := q.db.ExecContext(ctx, query, lineID, userID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return expectAffected(res, domain.ErrCartLineNotFound)
}

// DeleteCartLines removes exactly the given lines. Lines added after the
// caller read the cart are left alone.
func (q *queries) DeleteCartLines(ctx context.Context, userID int64, lineIDs []int64) (int64, error) {
	query := `DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)`

	res, err := q.db.ExecContext(ctx, query, userID, pq.Array(lineIDs))
	if err != nil {
		return 0, fmt.Errorf("delete cart items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (q *queries) selectCartLines(ctx context.Context, query string, userID int64) ([]domain.CartLine, error) {
	rows, err := q.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		var (
			line       domain.CartLine
			spec       sql.NullInt64
			optionsKey string
		)
		if err := rows.Scan(
			&line.ID,
			&line.UserID,
			&line.ProductID,
			&spec,
			&optionsKey,
			&line.Quantity,
			&line.CreatedAt,
			&line.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		line.SpecificationID = int64Ptr(spec)
		if line.Options, err = domain.ParseOptionsKey(optionsKey); err != nil {
			return nil, fmt.Errorf("decode options of cart item %d: %w", line.ID, err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lines, nil
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// isOutOfRange reports a numeric_value_out_of_range error, raised when a
// merged quantity no longer fits the column.
func isOutOfRange(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22003"
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
