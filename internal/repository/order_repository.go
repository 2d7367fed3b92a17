package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

const orderColumns = `id, user_id, customer_name, phone, store_id, store_name, store_address,
	order_status, tracking_number, created_at, updated_at`

func (q *queries) InsertOrder(ctx context.Context, order *domain.Order) error {
	query := `INSERT INTO orders (id, user_id, customer_name, phone, store_id, store_name, store_address, order_status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING created_at, updated_at`

	err := q.db.QueryRowContext(ctx, query,
		order.ID,
		order.UserID,
		order.CustomerName,
		order.Phone,
		order.StoreID,
		order.StoreName,
		order.StoreAddress,
		order.Status,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (q *queries) InsertOrderLine(ctx context.Context, line *domain.OrderLine) error {
	query := `INSERT INTO order_items (order_id, product_id, specification_id, option_id, options, quantity, unit_price)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id`

	err := q.db.QueryRowContext(ctx, query,
		line.OrderID,
		line.ProductID,
		nullInt64(line.SpecificationID),
		nullInt64(line.OptionID),
		line.Options.CanonicalKey(),
		line.Quantity,
		line.UnitPrice,
	).Scan(&line.ID)
	if err != nil {
		return fmt.Errorf("insert order item for product %d: %w", line.ProductID, err)
	}
	return nil
}

func (q *queries) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return q.getOrder(ctx, query, id)
}

func (q *queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return q.getOrder(ctx, query, id)
}

func (q *queries) ListOrdersByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id`
	return q.selectOrders(ctx, query, userID)
}

func (q *queries) ListAllOrders(ctx context.Context) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id`
	return q.selectOrders(ctx, query)
}

func (q *queries) ListOrderLines(ctx context.Context, orderID uuid.UUID) ([]domain.OrderLineDetail, error) {
	query := `SELECT oi.id, oi.order_id, oi.product_id, oi.specification_id, oi.option_id, oi.options,
	                 oi.quantity, oi.unit_price,
	                 ps.name, ps.price, po.option_name, po.option_value
	          FROM order_items AS oi
	          LEFT JOIN product_specifications AS ps ON oi.specification_id = ps.id
	          LEFT JOIN product_options AS po ON oi.option_id = po.id
	          WHERE oi.order_id = $1
	          ORDER BY oi.id`

	rows, err := q.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLineDetail, 0)
	for rows.Next() {
		var (
			d                 domain.OrderLineDetail
			spec, option      sql.NullInt64
			optionsKey        string
			specName          sql.NullString
			specPrice         sql.NullFloat64
			optName, optValue sql.NullString
		)
		if err := rows.Scan(
			&d.ID,
			&d.OrderID,
			&d.ProductID,
			&spec,
			&option,
			&optionsKey,
			&d.Quantity,
			&d.UnitPrice,
			&specName,
			&specPrice,
			&optName,
			&optValue,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		d.SpecificationID = int64Ptr(spec)
		d.OptionID = int64Ptr(option)
		if d.Options, err = domain.ParseOptionsKey(optionsKey); err != nil {
			return nil, fmt.Errorf("decode options of order item %d: %w", d.ID, err)
		}
		d.SpecName = stringPtr(specName)
		d.OptionName = stringPtr(optName)
		d.OptionValue = stringPtr(optValue)
		if specPrice.Valid {
			p := specPrice.Float64
			d.SpecPrice = &p
		}
		lines = append(lines, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return lines, nil
}

func (q *queries) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	query := `UPDATE orders SET order_status = $1, updated_at = NOW() WHERE id = $2`

	res, err := q.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return expectAffected(res, domain.ErrOrderNotFound)
}

func (q *queries) UpdateTrackingNumber(ctx context.Context, id uuid.UUID, trackingNumber string) error {
	query := `UPDATE orders SET tracking_number = $1, updated_at = NOW() WHERE id = $2`

	res, err := q.db.ExecContext(ctx, query, trackingNumber, id)
	if err != nil {
		return fmt.Errorf("update tracking number: %w", err)
	}
	return expectAffected(res, domain.ErrOrderNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(s rowScanner) (*domain.Order, error) {
	var (
		order    domain.Order
		tracking sql.NullString
	)
	err := s.Scan(
		&order.ID,
		&order.UserID,
		&order.CustomerName,
		&order.Phone,
		&order.StoreID,
		&order.StoreName,
		&order.StoreAddress,
		&order.Status,
		&tracking,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.TrackingNumber = stringPtr(tracking)
	return &order, nil
}

func (q *queries) getOrder(ctx context.Context, query string, id uuid.UUID) (*domain.Order, error) {
	order, err := scanOrder(q.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (q *queries) selectOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
