package inventory

import (
	"context"
	"fmt"
	"github.com/cockroachdb/errors"
	"time"

	"openbooking/internal/pkg/config"
	"openbooking/internal/pkg/dates"
	"openbooking/internal/pkg/errs"
	"openbooking/internal/pkg/fault"
	"openbooking/internal/platform/db"
	"openbooking/internal/platform/lock"
)

// Strategy decrements stock for every night of a stay inside the caller's
// transaction. All three implementations preserve the no-oversell guarantee;
// they differ in how they handle contention.
type Strategy interface {
	Reserve(ctx context.Context, q db.DBTX, roomID int64, nights []time.Time, qty int) error
}

const (
	StrategyDistributed = "distributed"
	StrategyPessimistic = "pessimistic"
	StrategyOptimistic  = "optimistic"
)

// NewStrategy selects the reservation strategy from config at startup.
func NewStrategy(cfg config.InventoryConfig, repo Repository, locks lock.Provider) (Strategy, error) {
	switch cfg.Strategy {
	case StrategyDistributed:
		return &distributedStrategy{
			repo:  repo,
			locks: locks,
			wait:  cfg.LockWait(),
			lease: cfg.LockLease(),
		}, nil
	case StrategyPessimistic:
		return &pessimisticStrategy{repo: repo}, nil
	case StrategyOptimistic:
		return &optimisticStrategy{repo: repo, maxRetries: cfg.OptimisticMaxRetries}, nil
	default:
		return nil, errs.Newf("unknown reservation strategy %q", cfg.Strategy)
	}
}

func insufficient(roomID int64, night time.Time, qty int) error {
	return fault.Businessf(fault.CodeInsufficientAvailability,
		"room %d has fewer than %d available on %s", roomID, qty, dates.Format(night))
}

// distributedStrategy takes a Redis lock on (room, first night) to collapse
// contention spikes, then applies the guarded decrement per night. The
// decrement alone guarantees correctness; the lock only reduces conflicts.
type distributedStrategy struct {
	repo  Repository
	locks lock.Provider
	wait  time.Duration
	lease time.Duration
}

func lockKey(roomID int64, firstNight time.Time) string {
	return fmt.Sprintf("lock:room:%d:%s", roomID, dates.Format(firstNight))
}

func (s *distributedStrategy) Reserve(ctx context.Context, q db.DBTX, roomID int64, nights []time.Time, qty int) error {
	l, err := s.locks.Acquire(ctx, lockKey(roomID, nights[0]), s.wait, s.lease)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			// Contention is transient; the caller retries with the same
			// idempotency key rather than failing the booking.
			return fault.Unavailable(err, fmt.Sprintf("reservation lock for room %d is contended", roomID))
		}
		return err
	}
	defer func() { _ = l.Release(ctx) }()

	return reserveGuarded(ctx, q, s.repo, roomID, nights, qty)
}

func reserveGuarded(ctx context.Context, q db.DBTX, repo Repository, roomID int64, nights []time.Time, qty int) error {
	for _, night := range nights {
		ok, err := repo.DecrementIfAvailable(ctx, q, roomID, night, qty)
		if err != nil {
			return err
		}
		if !ok {
			return insufficient(roomID, night, qty)
		}
	}
	return nil
}

// pessimisticStrategy serializes writers on the availability row itself with
// SELECT ... FOR UPDATE, then decrements under the lock.
type pessimisticStrategy struct {
	repo Repository
}

func (s *pessimisticStrategy) Reserve(ctx context.Context, q db.DBTX, roomID int64, nights []time.Time, qty int) error {
	for _, night := range nights {
		a, err := s.repo.NightForUpdate(ctx, q, roomID, night)
		if err != nil {
			if errors.Is(err, fault.ErrNotFound) {
				return insufficient(roomID, night, qty)
			}
			return err
		}
		if a.AvailableCount < qty {
			return insufficient(roomID, night, qty)
		}
		if err := s.repo.Decrement(ctx, q, roomID, night, qty); err != nil {
			return err
		}
	}
	return nil
}

// optimisticStrategy reads without locking and writes guarded by the row
// version, retrying a bounded number of times on conflict.
type optimisticStrategy struct {
	repo       Repository
	maxRetries int
}

func (s *optimisticStrategy) Reserve(ctx context.Context, q db.DBTX, roomID int64, nights []time.Time, qty int) error {
	for _, night := range nights {
		if err := s.reserveNight(ctx, q, roomID, night, qty); err != nil {
			return err
		}
	}
	return nil
}

func (s *optimisticStrategy) reserveNight(ctx context.Context, q db.DBTX, roomID int64, night time.Time, qty int) error {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		a, err := s.repo.Night(ctx, q, roomID, night)
		if err != nil {
			if errors.Is(err, fault.ErrNotFound) {
				return insufficient(roomID, night, qty)
			}
			return err
		}
		if a.AvailableCount < qty {
			return insufficient(roomID, night, qty)
		}

		ok, err := s.repo.DecrementVersioned(ctx, q, roomID, night, qty, a.Version)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return errs.Newf("optimistic reserve gave up after %d retries for room %d on %s",
		s.maxRetries, roomID, dates.Format(night))
}
