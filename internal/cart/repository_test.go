package cart_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/cart"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/db/dbtest"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/user"
)

func TestCartRepository_Lifecycle(t *testing.T) {
	pool := dbtest.Open(t)
	ctx := context.Background()

	u := &user.User{
		Email:        fmt.Sprintf("cart-%s@example.com", uuid.Must(uuid.NewV4())),
		PasswordHash: "hash",
		Name:         "Cart Owner",
	}
	userID, err := user.NewRepository(pool).Create(ctx, u)
	require.NoError(t, err)

	p := &catalog.Product{Name: "Cart Mug", Price: decimal.RequireFromString("4.50"), Stock: 9}
	require.NoError(t, catalog.NewRepository(pool).Create(ctx, p))

	t.Cleanup(func() {
		dbtest.DeleteUsers(t, pool, userID)
		dbtest.DeleteProducts(t, pool, p.ID)
	})

	repo := cart.NewRepository(pool)

	qty, err := repo.QuantityOf(ctx, userID, p.ID)
	require.NoError(t, err)
	require.Zero(t, qty)

	require.NoError(t, repo.Upsert(ctx, userID, p.ID, 2))
	require.NoError(t, repo.Upsert(ctx, userID, p.ID, 3))

	items, err := repo.GetItems(ctx, userID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 3, items[0].Quantity)
	require.Equal(t, "Cart Mug", items[0].Name)
	require.True(t, p.Price.Equal(items[0].Price))
	require.Equal(t, 9, items[0].Stock)

	require.NoError(t, repo.SetQuantity(ctx, userID, items[0].ID, 1))
	item, err := repo.GetItem(ctx, userID, items[0].ID)
	require.NoError(t, err)
	require.Equal(t, 1, item.Quantity)

	_, err = repo.GetItem(ctx, uuid.Must(uuid.NewV4()), items[0].ID)
	require.ErrorIs(t, err, cart.ErrItemNotFound)

	require.NoError(t, repo.Delete(ctx, userID, items[0].ID))
	require.ErrorIs(t, repo.Delete(ctx, userID, items[0].ID), cart.ErrItemNotFound)

	require.NoError(t, repo.Upsert(ctx, userID, p.ID, 1))
	require.NoError(t, repo.Clear(ctx, userID))
	items, err = repo.GetItems(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, items)
}
