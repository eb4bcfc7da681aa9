package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/auth"
	httphandler "github.com/vasiliy-maslov/ecommerce-storefront/internal/handler/http"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/metrics"
)

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Auth     *httphandler.AuthHandler
	Products *httphandler.ProductHandler
	Cart     *httphandler.CartHandler
	Orders   *httphandler.OrderHandler
}

type RouterConfig struct {
	Logger   zerolog.Logger
	Tokens   *auth.TokenManager
	Limiter  *IPRateLimiter
	Metrics  *metrics.ServerMetrics
	Gatherer prometheus.Gatherer
	DB       Pinger
}

func NewRouter(cfg RouterConfig, h Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(cfg.Logger))
	r.Use(requestIDField)
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.Get("/health", health(cfg.DB))
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(cfg.Gatherer))
	}

	// Public.
	h.Products.RegisterPublicRoutes(r)
	r.Group(func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(cfg.Limiter.Middleware)
		}
		h.Auth.RegisterPublicRoutes(r)
	})

	// Authenticated customers.
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Tokens))
		h.Auth.RegisterProtectedRoutes(r)
		h.Cart.RegisterRoutes(r)
		h.Orders.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			h.Products.RegisterAdminRoutes(r)
			h.Orders.RegisterAdminRoutes(r)
		})
	})

	return r
}

func requestIDField(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			logger := zerolog.Ctx(r.Context())
			logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("request_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	event := hlog.FromRequest(r).Info()
	if status >= http.StatusInternalServerError {
		event = hlog.FromRequest(r).Error()
	}
	event.
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("remote_ip", clientIP(r)).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request handled")
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				hlog.FromRequest(r).Error().Err(err).Msg("transport: health check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("database unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
