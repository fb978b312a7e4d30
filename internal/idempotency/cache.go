package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the optional fast read layer. It only accelerates lookups: a miss
// or transport error always falls through to the durable store, and writes
// are best-effort.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, payload []byte)
}

type redisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

// NewRedisCache builds a cache under the given key prefix, e.g.
// "idempotency:reserve:" or "idempotency:payment:".
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration, log *slog.Logger) Cache {
	return &redisCache{client: client, prefix: prefix, ttl: ttl, log: log}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Debug("idempotency cache read failed, falling back to store", "key", key, "error", err)
		return nil, false
	}
	return payload, true
}

func (c *redisCache) Put(ctx context.Context, key string, payload []byte) {
	if err := c.client.Set(ctx, c.prefix+key, payload, c.ttl).Err(); err != nil {
		c.log.Warn("failed to warm idempotency cache", "key", key, "error", err)
	}
}

// NopCache disables the fast layer; every lookup hits the durable store.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (NopCache) Put(context.Context, string, []byte)        {}
