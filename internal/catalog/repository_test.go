package catalog_test

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/db/dbtest"
)

func TestProductRepository_CreateAndGet(t *testing.T) {
	pool := dbtest.Open(t)
	repo := catalog.NewRepository(pool)

	p := &catalog.Product{
		Name:        "Test Kettle",
		Description: "Boils water",
		Price:       decimal.RequireFromString("19.90"),
		Stock:       7,
		Images:      catalog.Images{"https://example.com/a.jpg", "https://example.com/b.jpg"},
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM products WHERE id = $1", p.ID)
	})

	require.NoError(t, repo.Create(context.Background(), p))
	require.NotEqual(t, uuid.Nil, p.ID)
	require.False(t, p.CreatedAt.IsZero())

	found, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, p.Name, found.Name)
	require.True(t, p.Price.Equal(found.Price))
	require.Equal(t, 7, found.Stock)
	require.Equal(t, p.Images, found.Images)
	require.False(t, found.CategoryID.Valid)
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	pool := dbtest.Open(t)
	repo := catalog.NewRepository(pool)

	found, err := repo.GetByID(context.Background(), uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
	require.Nil(t, found)
}

func TestProductRepository_Create_UnknownCategory(t *testing.T) {
	pool := dbtest.Open(t)
	repo := catalog.NewRepository(pool)

	p := &catalog.Product{
		Name:       "Orphan",
		Price:      decimal.NewFromInt(1),
		CategoryID: uuid.NullUUID{UUID: uuid.Must(uuid.NewV4()), Valid: true},
	}
	require.ErrorIs(t, repo.Create(context.Background(), p), catalog.ErrCategoryNotFound)
}
