// Package redis fronts a catalog with a read-through Redis cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/galleria/storefront/internal/catalog/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "catalog:product:"

// Cache serves Get from Redis and falls back to the wrapped catalog on a miss
// or when Redis is unavailable. Listing calls go straight to the source.
type Cache struct {
	log    *slog.Logger
	rdb    redis.Cmdable
	source domain.Catalog
	ttl    time.Duration
}

func NewCache(log *slog.Logger, rdb redis.Cmdable, source domain.Catalog, ttl time.Duration) *Cache {
	return &Cache{log: log, rdb: rdb, source: source, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, id string) (domain.Product, error) {
	data, err := c.rdb.Get(ctx, keyPrefix+id).Bytes()
	if err == nil {
		var p domain.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return p, nil
		}
		c.log.Warn("discarding corrupt catalog cache entry", "product_id", id)
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("catalog cache read failed", "product_id", id, "err", err)
	}

	p, err := c.source.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if data, err := json.Marshal(p); err == nil {
		if err := c.rdb.Set(ctx, keyPrefix+id, data, c.ttl).Err(); err != nil {
			c.log.Warn("catalog cache write failed", "product_id", id, "err", err)
		}
	}
	return p, nil
}

func (c *Cache) ByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	return c.source.ByCategory(ctx, category)
}

func (c *Cache) All(ctx context.Context) ([]domain.Product, error) {
	return c.source.All(ctx)
}
