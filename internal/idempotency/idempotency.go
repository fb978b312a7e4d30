// Package idempotency implements the shared dedupe layer used by the
// inventory and payment services: a durable per-service Postgres table as
// source of truth, with an optional Redis read accelerator in front of it.
//
// The durable store is authoritative. A store read error never degrades to
// "not yet processed" — the operation fails closed with ServiceUnavailable
// so a retry with the same key can be answered safely later.
package idempotency

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"openbooking/internal/pkg/errs"
	"openbooking/internal/pkg/fault"
	"openbooking/internal/platform/db"

	"github.com/jackc/pgx/v5"
)

const bookingKeyPrefix = "booking-"

// BookingKey builds the structured key the orchestrator attaches to both
// reserve and charge calls for one saga.
func BookingKey(bookingID int64) string {
	return bookingKeyPrefix + strconv.FormatInt(bookingID, 10)
}

// ParseBookingKey extracts the booking id from a "booking-{n}" key.
// Opaque keys of any other shape are valid but carry no booking id.
func ParseBookingKey(key string) (int64, bool) {
	if !strings.HasPrefix(key, bookingKeyPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(key[len(bookingKeyPrefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ErrDuplicateKey reports that another request committed this key first.
// The loser re-reads the stored response instead of re-applying the effect.
var ErrDuplicateKey = errs.New("idempotency key already stored")

// Store is the narrow view services depend on; *Resolver implements it.
type Store interface {
	// Lookup returns the memoized response for key, or ok=false when the
	// key has never completed. Durable-store errors map to ServiceUnavailable.
	Lookup(ctx context.Context, q db.DBTX, key string) (payload []byte, ok bool, err error)
	// Save persists the memo inside the caller's transaction.
	Save(ctx context.Context, q db.DBTX, key string, payload []byte, now time.Time) error
	// Warm populates the fast cache after commit; best-effort.
	Warm(ctx context.Context, key string, payload []byte)
}

type Resolver struct {
	table string
	cache Cache
}

// NewResolver binds a resolver to one service's idempotency table. Pass a
// NopCache when the fast cache is disabled.
func NewResolver(table string, cache Cache) *Resolver {
	return &Resolver{table: table, cache: cache}
}

func (r *Resolver) Lookup(ctx context.Context, q db.DBTX, key string) ([]byte, bool, error) {
	if payload, ok := r.cache.Get(ctx, key); ok {
		return payload, true, nil
	}

	var payload []byte
	query := fmt.Sprintf(`SELECT response_json FROM %s WHERE key = $1`, r.table)
	err := q.QueryRow(ctx, query, key).Scan(&payload)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fault.Unavailable(err, "idempotency store read failed")
	}
	return payload, true, nil
}

func (r *Resolver) Save(ctx context.Context, q db.DBTX, key string, payload []byte, now time.Time) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (key, response_json, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO NOTHING`, r.table)
	tag, err := q.Exec(ctx, query, key, payload, now)
	if err != nil {
		return errs.Wrapf(err, "failed to save idempotency record %s", key)
	}
	if tag.RowsAffected() == 0 {
		return errs.Mark(errs.Newf("key %s raced with another request", key), ErrDuplicateKey)
	}
	return nil
}

func (r *Resolver) Warm(ctx context.Context, key string, payload []byte) {
	r.cache.Put(ctx, key, payload)
}
