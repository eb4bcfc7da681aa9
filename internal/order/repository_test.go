package order_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/db"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/db/dbtest"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/order"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/user"
)

type fixture struct {
	pool    *pgxpool.Pool
	repo    order.Repository
	userID  uuid.UUID
	product *catalog.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pool := dbtest.Open(t)
	ctx := context.Background()

	userID, err := user.NewRepository(pool).Create(ctx, &user.User{
		Email:        fmt.Sprintf("orders-%s@example.com", uuid.Must(uuid.NewV4())),
		PasswordHash: "hash",
		Name:         "Order Owner",
	})
	require.NoError(t, err)

	p := &catalog.Product{
		Name:   "Order Lamp",
		Price:  decimal.RequireFromString("12.50"),
		Stock:  10,
		Images: catalog.Images{"https://example.com/lamp.jpg"},
	}
	require.NoError(t, catalog.NewRepository(pool).Create(ctx, p))

	t.Cleanup(func() {
		dbtest.DeleteUsers(t, pool, userID)
		dbtest.DeleteProducts(t, pool, p.ID)
	})

	sqlxDB := (&db.Postgres{Pool: pool}).SQLX()
	return &fixture{pool: pool, repo: order.NewRepository(sqlxDB), userID: userID, product: p}
}

func (f *fixture) insertOrder(t *testing.T, quantity int, createdAt time.Time) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	orderID := uuid.Must(uuid.NewV4())
	total := f.product.Price.Mul(decimal.NewFromInt(int64(quantity)))

	_, err := f.pool.Exec(ctx,
		`INSERT INTO orders (id, user_id, total_amount, shipping_address, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		orderID, f.userID, total, "1 Test Street", createdAt,
	)
	require.NoError(t, err)

	_, err = f.pool.Exec(ctx,
		`INSERT INTO order_items (id, order_id, product_id, quantity, price_at_time) VALUES ($1, $2, $3, $4, $5)`,
		uuid.Must(uuid.NewV4()), orderID, f.product.ID, quantity, f.product.Price,
	)
	require.NoError(t, err)
	return orderID
}

func TestOrderRepository_GetOrderByID(t *testing.T) {
	f := newFixture(t)
	orderID := f.insertOrder(t, 3, time.Now())

	got, err := f.repo.GetOrderByID(context.Background(), f.userID, orderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, "37.50", got.TotalAmount.StringFixed(2))
	assert.Equal(t, 3, got.ItemCount)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Order Lamp", got.Items[0].ProductName)
	assert.Equal(t, f.product.Images, got.Items[0].Images)
	assert.True(t, f.product.Price.Equal(got.Items[0].PriceAtTime))

	_, err = f.repo.GetOrderByID(context.Background(), uuid.Must(uuid.NewV4()), orderID)
	assert.ErrorIs(t, err, order.ErrOrderNotFound, "orders are scoped to their owner")
}

func TestOrderRepository_GetOrdersByUserID_NewestFirst(t *testing.T) {
	f := newFixture(t)
	older := f.insertOrder(t, 1, time.Now().Add(-time.Hour))
	newer := f.insertOrder(t, 2, time.Now())

	orders, err := f.repo.GetOrdersByUserID(context.Background(), f.userID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, newer, orders[0].ID)
	assert.Equal(t, 2, orders[0].ItemCount)
	assert.Equal(t, older, orders[1].ID)
	assert.Equal(t, 1, orders[1].ItemCount)
}

func TestOrderRepository_UpdateOrderStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orderID := f.insertOrder(t, 1, time.Now())

	require.NoError(t, f.repo.UpdateOrderStatus(ctx, orderID, order.StatusPending, order.StatusPaid))

	status, err := f.repo.GetOrderStatus(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, status)

	err = f.repo.UpdateOrderStatus(ctx, orderID, order.StatusPending, order.StatusCancelled)
	assert.ErrorIs(t, err, order.ErrStatusChanged)

	err = f.repo.UpdateOrderStatus(ctx, uuid.Must(uuid.NewV4()), order.StatusPending, order.StatusPaid)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}
