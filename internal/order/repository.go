package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrStatusChanged = errors.New("order status changed concurrently")
)

type Repository interface {
	GetOrderByID(ctx context.Context, userID, orderID uuid.UUID) (*Order, error)
	GetOrderStatus(ctx context.Context, orderID uuid.UUID) (Status, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to Status) error
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, userID, orderID uuid.UUID) (*Order, error) {
	queryOrder := `
		SELECT o.id, o.user_id, o.status, o.total_amount, o.shipping_address, o.created_at, o.updated_at,
		       COALESCE((SELECT SUM(quantity) FROM order_items WHERE order_id = o.id), 0) AS item_count
		FROM orders o
		WHERE o.id = $1 AND o.user_id = $2
	`

	var o Order
	if err := r.db.GetContext(ctx, &o, queryOrder, orderID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	queryItems := `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price_at_time,
		       p.name AS product_name, p.images
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY p.name, oi.id
	`
	items := make([]Item, 0)
	if err := r.db.SelectContext(ctx, &items, queryItems, orderID); err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order id %s: %w", orderID, err)
	}
	o.Items = items

	return &o, nil
}

func (r *postgresRepository) GetOrderStatus(ctx context.Context, orderID uuid.UUID) (Status, error) {
	var status Status
	if err := r.db.GetContext(ctx, &status, "SELECT status FROM orders WHERE id = $1", orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrOrderNotFound
		}
		return "", fmt.Errorf("repository: failed to select order status %s: %w", orderID, err)
	}
	return status, nil
}

func (r *postgresRepository) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	query := `
		SELECT o.id, o.user_id, o.status, o.total_amount, o.shipping_address, o.created_at, o.updated_at,
		       COALESCE(SUM(oi.quantity), 0) AS item_count
		FROM orders o
		LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE o.user_id = $1
		GROUP BY o.id
		ORDER BY o.created_at DESC, o.id
	`

	orders := make([]Order, 0)
	if err := r.db.SelectContext(ctx, &orders, query, userID); err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user id %s: %w", userID, err)
	}
	return orders, nil
}

// UpdateOrderStatus only applies when the stored status still equals from.
func (r *postgresRepository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to Status) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`

	res, err := r.db.ExecContext(ctx, query, string(to), orderID, string(from))
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Stringer("new_status", to).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows for order %s: %w", orderID, err)
	}
	if affected == 0 {
		if _, err := r.GetOrderStatus(ctx, orderID); err != nil {
			return err
		}
		return ErrStatusChanged
	}
	return nil
}
