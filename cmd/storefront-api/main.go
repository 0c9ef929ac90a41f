package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	catalogapp "github.com/galleria/storefront/internal/catalog/application"
	cataloghttp "github.com/galleria/storefront/internal/catalog/infrastructure/http"
	orderapp "github.com/galleria/storefront/internal/order/application"
	orderhttp "github.com/galleria/storefront/internal/order/infrastructure/http"
	orderkafka "github.com/galleria/storefront/internal/order/infrastructure/kafka"
	orderpg "github.com/galleria/storefront/internal/order/infrastructure/postgres"
	"github.com/galleria/storefront/internal/payment/infrastructure/stripe"
	"github.com/galleria/storefront/internal/platform"
	stockapp "github.com/galleria/storefront/internal/stock/application"
	stockgrpc "github.com/galleria/storefront/internal/stock/infrastructure/grpc"
	stockhttp "github.com/galleria/storefront/internal/stock/infrastructure/http"
	stockpg "github.com/galleria/storefront/internal/stock/infrastructure/postgres"
	"github.com/galleria/storefront/internal/storage/migrations"
	"github.com/galleria/storefront/pkg/config"
	"github.com/galleria/storefront/pkg/httpx"
	"github.com/galleria/storefront/pkg/idempotency"
	"github.com/galleria/storefront/pkg/logging"
	"github.com/galleria/storefront/pkg/metrics"
	"github.com/galleria/storefront/pkg/outbox"
	"github.com/galleria/storefront/pkg/shutdown"
	"github.com/galleria/storefront/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)
	if err := cfg.CheckAdmin(); err != nil {
		log.Error("refusing to start", "err", err)
		os.Exit(1)
	}
	if cfg.AdminToken == "" {
		log.Warn("admin routes are served without a token", "route", "PUT /api/products/stock")
	}
	if cfg.IdempotencyLease <= cfg.WebhookBudget {
		log.Warn("idempotency lease does not cover the webhook budget", "lease", cfg.IdempotencyLease, "budget", cfg.WebhookBudget)
	}

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "storefront-api", cfg.JaegerURL, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// Postgres
	pool, err := platform.OpenPostgres(ctx, cfg.PGURL)
	if err != nil {
		log.Error("postgres unavailable", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if _, err := migrations.Apply(ctx, log, pool); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	rdb := platform.OpenRedis(ctx, log, cfg.RedisAddr)
	defer rdb.Close()

	writer := orderkafka.NewWriter(cfg.Kafka)
	defer writer.Close()

	// Stock
	stockSvc := stockapp.NewService(log, stockpg.NewRepository(log, pool))

	// Catalog
	base, catalog, err := platform.Catalog(log, rdb, cfg.CatalogTTL)
	if err != nil {
		log.Error("catalog load failed", "err", err)
		os.Exit(1)
	}
	if _, err := stockSvc.Seed(ctx, base.IDs()); err != nil {
		log.Warn("stock seed failed", "err", err)
	}
	catalogSvc := catalogapp.NewService(log, catalog, stockSvc)

	// Payment processor
	verifier := stripe.NewVerifier(cfg.Stripe.WebhookSecret)
	processor := stripe.NewClient(log, stripe.Options{
		SecretKey:  cfg.Stripe.SecretKey,
		Currency:   cfg.Stripe.Currency,
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
		Timeout:    cfg.PollTimeout,
	})

	// Orders
	orderSvc := orderapp.NewService(log, orderpg.NewRepository(log, pool), stockSvc, catalogSvc, orderpg.NewRetryQueue(pool))
	orderHandler := orderhttp.NewHandler(log, orderhttp.Deps{
		Service:       orderSvc,
		Verifier:      verifier,
		Sessions:      processor,
		Checkout:      processor,
		Dedupe:        idempotency.NewStore(rdb, cfg.IdempotencyLease, cfg.IdempotencyTTL),
		Catalog:       catalog,
		Stock:         stockSvc,
		WebhookBudget: cfg.WebhookBudget,
		PollTimeout:   cfg.PollTimeout,
	})

	// HTTP server
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, httpx.RequestLogger(log), metrics.Middleware)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			httpx.Error(w, r, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())
	orderHandler.Register(r)
	stockhttp.NewHandler(log, stockSvc, cfg.AdminToken).Register(r)
	cataloghttp.NewHandler(log, catalogSvc).Register(r)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      otelhttp.NewHandler(r, "storefront-api"),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// gRPC stock service
	gs, err := stockgrpc.Run(cfg.GRPCAddr, stockgrpc.NewServer(log, stockSvc))
	if err != nil {
		log.Error("grpc listen failed", "err", err)
		os.Exit(1)
	}
	log.Info("grpc listening", "addr", cfg.GRPCAddr)

	// Outbox relay
	hostname, _ := os.Hostname()
	relay := outbox.NewRelay(log, outbox.NewPGStore(log, pool), outbox.NewDispatcher(log, writer, cfg.Topic), "storefront-api-"+hostname)
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	gs.GracefulStop()
	log.Info("storefront-api shutdown complete")
}
