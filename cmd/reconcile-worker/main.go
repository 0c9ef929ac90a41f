package main

import (
	"context"
	"fmt"
	"os"

	catalogapp "github.com/galleria/storefront/internal/catalog/application"
	orderapp "github.com/galleria/storefront/internal/order/application"
	orderkafka "github.com/galleria/storefront/internal/order/infrastructure/kafka"
	orderpg "github.com/galleria/storefront/internal/order/infrastructure/postgres"
	"github.com/galleria/storefront/internal/payment/infrastructure/stripe"
	"github.com/galleria/storefront/internal/platform"
	stockgrpc "github.com/galleria/storefront/internal/stock/infrastructure/grpc"
	"github.com/galleria/storefront/pkg/config"
	"github.com/galleria/storefront/pkg/idempotency"
	"github.com/galleria/storefront/pkg/logging"
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

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "reconcile-worker", cfg.JaegerURL, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	pool, err := platform.OpenPostgres(ctx, cfg.PGURL)
	if err != nil {
		log.Error("postgres unavailable", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := platform.OpenRedis(ctx, log, cfg.RedisAddr)
	defer rdb.Close()

	// Stock writes go through the API's gRPC service, which owns the table.
	stock, err := stockgrpc.NewClient(log, cfg.StockAddr)
	if err != nil {
		log.Error("stock client failed", "err", err)
		os.Exit(1)
	}
	defer stock.Close()

	_, catalog, err := platform.Catalog(log, rdb, cfg.CatalogTTL)
	if err != nil {
		log.Error("catalog load failed", "err", err)
		os.Exit(1)
	}
	catalogSvc := catalogapp.NewService(log, catalog, nil)

	processor := stripe.NewClient(log, stripe.Options{SecretKey: cfg.Stripe.SecretKey, Timeout: cfg.PollTimeout})
	orderSvc := orderapp.NewService(log, orderpg.NewRepository(log, pool), stock, catalogSvc, orderpg.NewRetryQueue(pool))
	retrier := orderapp.NewRetrier(orderSvc, processor)

	consumer := orderkafka.NewRetryConsumer(log, cfg.Kafka, cfg.Topic, cfg.GroupID, retrier, idempotency.NewStore(rdb, cfg.IdempotencyLease, cfg.IdempotencyTTL))
	log.Info("reconcile worker started", "topic", cfg.Topic, "group", cfg.GroupID)
	if err := consumer.Run(ctx); err != nil {
		log.Error("consumer stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("reconcile-worker shutdown complete")
}
