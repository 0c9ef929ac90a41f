// Package platform opens the shared infrastructure clients the binaries wire
// together.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	catalogdomain "github.com/galleria/storefront/internal/catalog/domain"
	catalogredis "github.com/galleria/storefront/internal/catalog/infrastructure/redis"
	"github.com/galleria/storefront/internal/catalog/infrastructure/static"
)

func OpenPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}
	return pool, nil
}

// OpenRedis does not fail when Redis is down: dedupe and the catalog cache
// degrade to pass-through.
func OpenRedis(ctx context.Context, log *slog.Logger, addr string) *redis.Client {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, continuing without cache", "addr", addr, "err", err)
	}
	return rdb
}

// Catalog returns the embedded catalog and the same catalog behind the Redis
// read-through cache.
func Catalog(log *slog.Logger, rdb redis.Cmdable, ttl time.Duration) (*static.Catalog, catalogdomain.Catalog, error) {
	base, err := static.Load()
	if err != nil {
		return nil, nil, err
	}
	return base, catalogredis.NewCache(log, rdb, base, ttl), nil
}
