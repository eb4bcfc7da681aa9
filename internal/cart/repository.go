package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrItemNotFound = errors.New("cart item not found")

type Repository interface {
	GetItems(ctx context.Context, userID uuid.UUID) ([]Item, error)
	GetItem(ctx context.Context, userID, itemID uuid.UUID) (*Item, error)
	QuantityOf(ctx context.Context, userID, productID uuid.UUID) (int, error)
	Upsert(ctx context.Context, userID, productID uuid.UUID, quantity int) error
	SetQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) error
	Delete(ctx context.Context, userID, itemID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const selectItems = `
	SELECT ci.id, ci.product_id, ci.quantity, p.name, p.price, p.images, p.stock, ci.created_at
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
`

func scanItem(row pgx.Row, item *Item) error {
	return row.Scan(
		&item.ID,
		&item.ProductID,
		&item.Quantity,
		&item.Name,
		&item.Price,
		&item.Images,
		&item.Stock,
		&item.CreatedAt,
	)
}

func (r *postgresRepository) GetItems(ctx context.Context, userID uuid.UUID) ([]Item, error) {
	rows, err := r.db.Query(ctx, selectItems+" WHERE ci.user_id = $1 ORDER BY ci.created_at, ci.id", userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query cart for user %s: %w", userID, err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("repository: failed to scan cart item for user %s: %w", userID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating cart for user %s: %w", userID, err)
	}
	return items, nil
}

func (r *postgresRepository) GetItem(ctx context.Context, userID, itemID uuid.UUID) (*Item, error) {
	var item Item
	err := scanItem(r.db.QueryRow(ctx, selectItems+" WHERE ci.id = $1 AND ci.user_id = $2", itemID, userID), &item)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("repository: failed to select cart item %s: %w", itemID, err)
	}
	return &item, nil
}

// QuantityOf returns 0 when the product is not in the cart.
func (r *postgresRepository) QuantityOf(ctx context.Context, userID, productID uuid.UUID) (int, error) {
	var quantity int
	err := r.db.QueryRow(ctx,
		"SELECT quantity FROM cart_items WHERE user_id = $1 AND product_id = $2",
		userID, productID,
	).Scan(&quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("repository: failed to select cart quantity: %w", err)
	}
	return quantity, nil
}

func (r *postgresRepository) Upsert(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("repository: failed to generate cart item ID: %w", err)
	}

	query := `
		INSERT INTO cart_items (id, user_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
	`
	if _, err := r.db.Exec(ctx, query, id, userID, productID, quantity); err != nil {
		return fmt.Errorf("repository: failed to upsert cart item: %w", err)
	}
	return nil
}

func (r *postgresRepository) SetQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE id = $2 AND user_id = $3",
		quantity, itemID, userID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update cart item %s: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *postgresRepository) Delete(ctx context.Context, userID, itemID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM cart_items WHERE id = $1 AND user_id = $2", itemID, userID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete cart item %s: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *postgresRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("repository: failed to clear cart for user %s: %w", userID, err)
	}
	return nil
}
