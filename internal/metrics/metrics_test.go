package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/metrics"
)

func TestServerMetrics_LabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewServerMetrics(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/orders/{id}", "404")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Requests))
}

func TestCheckoutMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCheckout(reg)

	c.OrderPlaced()
	c.OrderPlaced()
	c.CheckoutRetried()
	c.CheckoutFailed("empty_cart")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Placed))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Retries))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Failures.WithLabelValues("empty_cart")))

	rr := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "storefront_checkout_orders_placed_total 2"))
}
