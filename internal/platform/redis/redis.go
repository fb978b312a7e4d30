package redis

import (
	"context"
	"time"

	"openbooking/internal/pkg/config"
	"openbooking/internal/pkg/errs"

	"github.com/redis/go-redis/v9"
)

// Connect opens a client and verifies connectivity with a short ping retry,
// so a service racing its Redis container at startup does not crash-loop.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	const maxAttempts = 4
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				_ = client.Close()
				return nil, nil, ctx.Err()
			case <-time.After(time.Second):
			}
		}
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			cleanup := func() { _ = client.Close() }
			return client, cleanup, nil
		}
	}

	_ = client.Close()
	return nil, nil, errs.Wrapf(lastErr, "failed to connect to redis at %s", cfg.Addr)
}
