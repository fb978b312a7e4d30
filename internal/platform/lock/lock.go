// Package lock provides a Redis-backed distributed lock with a bounded
// acquisition wait and an expiring lease. The lock collapses contention
// spikes on hot rows; it is not load-bearing for correctness, which the
// guarded decrement guarantees on its own.
package lock

import (
	"context"
	"time"

	"openbooking/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the wait window elapses without the lock
// being obtained. Callers surface it as a retryable condition.
var ErrNotAcquired = errs.New("lock not acquired within wait window")

type Provider interface {
	// Acquire blocks up to wait for the lock, holding it for at most lease.
	Acquire(ctx context.Context, key string, wait, lease time.Duration) (Lock, error)
}

type Lock interface {
	Release(ctx context.Context) error
}

// releaseScript deletes the key only when still owned by this holder, so an
// expired lease taken over by another process is never released from here.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type redisProvider struct {
	client *redis.Client
}

func NewRedisProvider(client *redis.Client) Provider {
	return &redisProvider{client: client}
}

func (p *redisProvider) Acquire(ctx context.Context, key string, wait, lease time.Duration) (Lock, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	pollInterval := 50 * time.Millisecond

	for {
		ok, err := p.client.SetNX(ctx, key, token, lease).Result()
		if err != nil {
			return nil, errs.Wrapf(err, "failed to acquire lock %s", key)
		}
		if ok {
			return &redisLock{client: p.client, key: key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, errs.Mark(errs.Newf("lock %s held elsewhere", key), ErrNotAcquired)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLock) Release(ctx context.Context) error {
	if err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err(); err != nil {
		return errs.Wrapf(err, "failed to release lock %s", l.key)
	}
	return nil
}
