package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/order"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/outbox"
)

type postgresStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}

	// Rollback must run even when the request context is already done.
	rollbackCtx := context.WithoutCancel(ctx)
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Msg("repository: panic recovered during checkout, rolling back")
			if rbErr := tx.Rollback(rollbackCtx); rbErr != nil {
				log.Error().Err(rbErr).Msg("repository: failed to rollback transaction after panic")
			}
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(rollbackCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Msg("repository: failed to rollback transaction")
			}
			err = asConflict(err)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = asConflict(fmt.Errorf("repository: failed to commit transaction: %w", commitErr))
		}
	}()

	return fn(ctx, &postgresTx{tx: tx})
}

// asConflict marks serialization failures and deadlocks as retryable.
func asConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
			return fmt.Errorf("%w: %w", ErrTxConflict, err)
		}
	}
	return err
}

type postgresTx struct {
	tx pgx.Tx
}

// CartLines locks the user's cart rows, then the referenced products in id
// order so concurrent checkouts acquire row locks in the same sequence.
func (t *postgresTx) CartLines(ctx context.Context, userID uuid.UUID) ([]Line, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT product_id, quantity
		FROM cart_items
		WHERE user_id = $1
		ORDER BY product_id
		FOR UPDATE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart lines for user %s: %w", userID, err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Line, error) {
		var l Line
		err := row.Scan(&l.ProductID, &l.Quantity)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("repository: failed to scan cart lines for user %s: %w", userID, err)
	}
	if len(lines) == 0 {
		return lines, nil
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}

	rows, err = t.tx.Query(ctx, `
		SELECT id, name, price, stock
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to lock products: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*Line, len(lines))
	for i := range lines {
		byID[lines[i].ProductID] = &lines[i]
	}
	for rows.Next() {
		var id uuid.UUID
		var l Line
		if err := rows.Scan(&id, &l.ProductName, &l.Price, &l.Stock); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		if line, ok := byID[id]; ok {
			line.Found = true
			line.ProductName = l.ProductName
			line.Price = l.Price
			line.Stock = l.Stock
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating products: %w", err)
	}
	return lines, nil
}

func (t *postgresTx) InsertOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, status, total_amount, shipping_address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, o.ID, o.UserID, string(o.Status), o.TotalAmount, o.ShippingAddress).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}
	return nil
}

func (t *postgresTx) InsertItems(ctx context.Context, items []order.Item) error {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
			INSERT INTO order_items (id, order_id, product_id, quantity, price_at_time)
			VALUES ($1, $2, $3, $4, $5)
		`, item.ID, item.OrderID, item.ProductID, item.Quantity, item.PriceAtTime)
	}

	br := t.tx.SendBatch(ctx, batch)
	for _, item := range items {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("repository: failed to insert order item for product %s: %w", item.ProductID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("repository: failed to insert order items: %w", err)
	}
	return nil
}

// DecrementStock returns ErrInsufficientStock when the guard rejects the update.
func (t *postgresTx) DecrementStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE products SET stock = stock - $1 WHERE id = $2 AND stock >= $1`,
		quantity, productID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to decrement stock for product %s: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (t *postgresTx) ClearCart(ctx context.Context, userID uuid.UUID) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("repository: failed to clear cart for user %s: %w", userID, err)
	}
	return nil
}

func (t *postgresTx) Enqueue(ctx context.Context, e outbox.Event) error {
	return outbox.Insert(ctx, t.tx, e)
}
