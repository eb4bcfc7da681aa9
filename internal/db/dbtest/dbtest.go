// Package dbtest connects repository tests to a disposable PostgreSQL
// database. Tests are skipped unless DB_HOST_TEST is set.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/config"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/db"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ConfigFromEnv reads the *_TEST variables with localhost defaults.
func ConfigFromEnv() (config.PostgresConfig, bool) {
	host := os.Getenv("DB_HOST_TEST")
	if host == "" {
		return config.PostgresConfig{}, false
	}
	return config.PostgresConfig{
		Host:            host,
		Port:            getenv("DB_PORT_TEST", "5432"),
		User:            getenv("DB_USER_TEST", "postgres"),
		Password:        getenv("DB_PASSWORD_TEST", "123456"),
		DBName:          getenv("DB_NAME_TEST", "storefront_test"),
		SSLMode:         getenv("DB_SSLMODE_TEST", "disable"),
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}, true
}

// Open returns a migrated pool or skips the test.
func Open(tb testing.TB) *pgxpool.Pool {
	tb.Helper()

	cfg, ok := ConfigFromEnv()
	if !ok {
		tb.Skip("DB_HOST_TEST is not set, skipping PostgreSQL integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, err := db.New(ctx, cfg)
	require.NoError(tb, err, "failed to connect to test database")
	tb.Cleanup(pg.Close)

	require.NoError(tb, db.Migrate(pg.Pool), "failed to migrate test database")
	return pg.Pool
}

// DeleteUsers removes test users together with their carts and orders.
func DeleteUsers(tb testing.TB, pool *pgxpool.Pool, ids ...uuid.UUID) {
	tb.Helper()
	ctx := context.Background()
	_, err := pool.Exec(ctx, "DELETE FROM orders WHERE user_id = ANY($1)", ids)
	require.NoError(tb, err, "failed to delete test orders")
	_, err = pool.Exec(ctx, "DELETE FROM users WHERE id = ANY($1)", ids)
	require.NoError(tb, err, "failed to delete test users")
}

// DeleteProducts removes test products once nothing references them.
func DeleteProducts(tb testing.TB, pool *pgxpool.Pool, ids ...uuid.UUID) {
	tb.Helper()
	ctx := context.Background()
	_, err := pool.Exec(ctx, "DELETE FROM order_items WHERE product_id = ANY($1)", ids)
	require.NoError(tb, err, "failed to delete test order items")
	_, err = pool.Exec(ctx, "DELETE FROM products WHERE id = ANY($1)", ids)
	require.NoError(tb, err, "failed to delete test products")
}
