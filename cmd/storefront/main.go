package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/auth"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/cart"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/checkout"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/config"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/db"
	httphandler "github.com/vasiliy-maslov/ecommerce-storefront/internal/handler/http"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/metrics"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/order"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/outbox"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/transport"
	"github.com/vasiliy-maslov/ecommerce-storefront/internal/user"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	setupLogger(cfg.App)
	log.Info().Msg("Storefront starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pg, err := db.New(connectCtx, cfg.Postgres)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	if cfg.Postgres.Migrate {
		if err := db.Migrate(pg.Pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sqlxDB := pg.SQLX()
	defer sqlxDB.Close()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	userSvc := user.NewService(user.NewRepository(pg.Pool))
	productRepo := catalog.NewRepository(pg.Pool)
	productSvc := catalog.NewService(productRepo)
	cartSvc := cart.NewService(cart.NewRepository(pg.Pool), productRepo)
	orderSvc := order.NewService(order.NewRepository(sqlxDB))

	engineOpts := []checkout.Option{
		checkout.WithMaxAttempts(cfg.Checkout.MaxAttempts),
		checkout.WithObserver(metrics.NewCheckout(reg)),
	}

	var wg sync.WaitGroup
	if cfg.Kafka.Enabled() {
		engineOpts = append(engineOpts, checkout.WithEvents(cfg.Kafka.OrderTopic))

		publisher := outbox.NewKafkaPublisher(cfg.Kafka.Brokers)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close kafka publisher")
			}
		}()

		relay := outbox.NewRelay(outbox.NewStore(pg.Pool), publisher, cfg.Outbox.Interval, cfg.Outbox.BatchSize)
		wg.Add(1)
		go func() {
			defer wg.Done()
			relay.Run(ctx)
		}()
	} else {
		log.Warn().Msg("KAFKA_BROKERS not set, order events are disabled")
	}

	engine := checkout.NewEngine(checkout.NewStore(pg.Pool), engineOpts...)

	router := transport.NewRouter(transport.RouterConfig{
		Logger:   log.Logger,
		Tokens:   tokens,
		Limiter:  transport.NewIPRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateBurst, 3*time.Minute),
		Metrics:  metrics.NewServerMetrics(reg),
		Gatherer: reg,
		DB:       pg.Pool,
	}, transport.Handlers{
		Auth:     httphandler.NewAuthHandler(userSvc, tokens),
		Products: httphandler.NewProductHandler(productSvc),
		Cart:     httphandler.NewCartHandler(cartSvc),
		Orders:   httphandler.NewOrderHandler(engine, orderSvc),
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	wg.Wait()

	log.Info().Msg("Storefront stopped gracefully")
}

func setupLogger(cfg config.AppConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", cfg.Name).Logger()
}
