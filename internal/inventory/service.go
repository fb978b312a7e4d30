package inventory

import (
	"context"
	"encoding/json"
	"github.com/cockroachdb/errors"
	"log/slog"
	"time"

	"openbooking/internal/idempotency"
	"openbooking/internal/pkg/clock"
	"openbooking/internal/pkg/config"
	"openbooking/internal/pkg/dates"
	"openbooking/internal/pkg/errs"
	"openbooking/internal/pkg/fault"
	"openbooking/internal/platform/db"

	"github.com/google/uuid"
)

type Service struct {
	cfg      config.InventoryConfig
	pool     db.DBTX
	runner   db.TxRunner
	repo     Repository
	strategy Strategy
	idem     idempotency.Store
	clk      clock.Clock
	log      *slog.Logger
}

func NewService(
	cfg config.InventoryConfig,
	pool db.DBTX,
	runner db.TxRunner,
	repo Repository,
	strategy Strategy,
	idem idempotency.Store,
	clk clock.Clock,
	log *slog.Logger,
) *Service {
	return &Service{
		cfg:      cfg,
		pool:     pool,
		runner:   runner,
		repo:     repo,
		strategy: strategy,
		idem:     idem,
		clk:      clk,
		log:      log,
	}
}

// Reserve decrements stock for every night of the stay and, for keys of the
// form "booking-{n}", records TTL'd holds in the same transaction as the
// decrement and the idempotency memo. A repeated key returns the stored
// response without touching stock.
func (s *Service) Reserve(ctx context.Context, cmd ReserveCommand) (ReserveResult, error) {
	nights := dates.Nights(cmd.CheckIn, cmd.CheckOut)
	if len(nights) == 0 {
		return ReserveResult{}, fault.Business(fault.CodeInvalidRequest, "check_out_date must be after check_in_date")
	}
	if cmd.Quantity <= 0 {
		return ReserveResult{}, fault.Business(fault.CodeInvalidRequest, "quantity must be positive")
	}

	if cmd.IdempotencyKey != "" {
		payload, ok, err := s.idem.Lookup(ctx, s.pool, cmd.IdempotencyKey)
		if err != nil {
			return ReserveResult{}, err
		}
		if ok {
			return decodeReserveResult(payload)
		}
	}

	var result ReserveResult
	err := s.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		if err := s.strategy.Reserve(ctx, q, cmd.RoomID, nights, cmd.Quantity); err != nil {
			return err
		}

		total, err := s.totalPrice(ctx, q, cmd.RoomID, nights, cmd.Quantity)
		if err != nil {
			return err
		}
		result = ReserveResult{
			ReservationID:   uuid.NewString(),
			TotalPriceCents: total,
			Status:          StatusReserved,
		}

		now := s.clk.Now()
		if bookingID, ok := idempotency.ParseBookingKey(cmd.IdempotencyKey); ok {
			expiresAt := now.Add(s.cfg.HoldTTL())
			for _, night := range nights {
				hold := Hold{
					BookingID: bookingID,
					RoomID:    cmd.RoomID,
					Date:      night,
					Quantity:  cmd.Quantity,
					ExpiresAt: expiresAt,
					CreatedAt: now,
				}
				if err := s.repo.InsertHold(ctx, q, hold); err != nil {
					return err
				}
			}
		}

		if cmd.IdempotencyKey != "" {
			payload, err := json.Marshal(result)
			if err != nil {
				return errs.Wrap(err, "failed to encode reserve response")
			}
			if err := s.idem.Save(ctx, q, cmd.IdempotencyKey, payload, now); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, idempotency.ErrDuplicateKey) {
		// Lost the insert race; the winner's response is now durable.
		return s.storedResult(ctx, cmd.IdempotencyKey)
	}
	if err != nil {
		// A raced duplicate can also surface as a guard failure: the winner
		// committed between our memo lookup and the decrement, taking the
		// stock this request was refused for. The memo answers for both.
		if cmd.IdempotencyKey != "" && fault.IsBusiness(err) {
			if payload, ok, lerr := s.idem.Lookup(ctx, s.pool, cmd.IdempotencyKey); lerr == nil && ok {
				return decodeReserveResult(payload)
			}
		}
		return ReserveResult{}, err
	}

	if cmd.IdempotencyKey != "" {
		if payload, err := json.Marshal(result); err == nil {
			s.idem.Warm(ctx, cmd.IdempotencyKey, payload)
		}
	}

	s.log.Info("reserved inventory",
		"room_id", cmd.RoomID,
		"nights", len(nights),
		"quantity", cmd.Quantity,
		"reservation_id", result.ReservationID,
		"total_price_cents", result.TotalPriceCents)
	return result, nil
}

func (s *Service) totalPrice(ctx context.Context, q db.DBTX, roomID int64, nights []time.Time, qty int) (int64, error) {
	var total int64
	for _, night := range nights {
		a, err := s.repo.Night(ctx, q, roomID, night)
		if err != nil {
			return 0, err
		}
		total += a.PricePerNight * int64(qty)
	}
	return total, nil
}

func (s *Service) storedResult(ctx context.Context, key string) (ReserveResult, error) {
	payload, ok, err := s.idem.Lookup(ctx, s.pool, key)
	if err != nil {
		return ReserveResult{}, err
	}
	if !ok {
		return ReserveResult{}, errs.Newf("idempotency record for %s vanished after duplicate insert", key)
	}
	return decodeReserveResult(payload)
}

func decodeReserveResult(payload []byte) (ReserveResult, error) {
	var r ReserveResult
	if err := json.Unmarshal(payload, &r); err != nil {
		return ReserveResult{}, errs.Wrap(err, "failed to decode stored reserve response")
	}
	return r, nil
}

// Confirm deletes every hold for the booking, making the reservation
// permanent. Safe to call repeatedly.
func (s *Service) Confirm(ctx context.Context, bookingID int64) error {
	return s.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		deleted, err := s.repo.DeleteHoldsByBooking(ctx, q, bookingID)
		if err != nil {
			return err
		}
		s.log.Info("confirmed reservation", "booking_id", bookingID, "holds_deleted", deleted)
		return nil
	})
}

// Release credits stock back. With a booking id the credit is keyed off the
// booking's holds so a second release is a no-op; without one the caller owns
// not calling it twice.
func (s *Service) Release(ctx context.Context, cmd ReleaseCommand) error {
	return s.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		if cmd.BookingID != nil {
			holds, err := s.repo.HoldsByBooking(ctx, q, *cmd.BookingID)
			if err != nil {
				return err
			}
			if len(holds) == 0 {
				s.log.Info("release skipped, holds already gone", "booking_id", *cmd.BookingID)
				return nil
			}
			for _, h := range holds {
				if err := s.repo.Credit(ctx, q, h.RoomID, h.Date, h.Quantity); err != nil {
					return err
				}
				if err := s.repo.DeleteHold(ctx, q, h.ID); err != nil {
					return err
				}
			}
			s.log.Info("released reservation", "booking_id", *cmd.BookingID, "holds", len(holds))
			return nil
		}

		for _, night := range dates.Nights(cmd.CheckIn, cmd.CheckOut) {
			if err := s.repo.Credit(ctx, q, cmd.RoomID, night, cmd.Quantity); err != nil {
				return err
			}
		}
		s.log.Info("released reservation without booking id", "room_id", cmd.RoomID, "quantity", cmd.Quantity)
		return nil
	})
}

// Seed creates or replaces availability rows for every night in [From, To).
func (s *Service) Seed(ctx context.Context, cmd SeedCommand) (int, error) {
	nights := dates.Nights(cmd.From, cmd.To)
	if len(nights) == 0 {
		return 0, fault.Business(fault.CodeInvalidRequest, "to must be after from")
	}
	if cmd.AvailableCount < 0 || cmd.PricePerNight < 0 {
		return 0, fault.Business(fault.CodeInvalidRequest, "available_count and price_per_night must be non-negative")
	}

	err := s.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		for _, night := range nights {
			a := Availability{
				RoomID:         cmd.RoomID,
				Date:           night,
				AvailableCount: cmd.AvailableCount,
				PricePerNight:  cmd.PricePerNight,
			}
			if err := s.repo.UpsertNight(ctx, q, a); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(nights), nil
}

// AvailabilityRange reads current stock for a room over [from, to). Reads are
// allowed to be stale; no locks are taken.
func (s *Service) AvailabilityRange(ctx context.Context, roomID int64, from, to time.Time) ([]Availability, error) {
	return s.repo.NightsInRange(ctx, s.pool, roomID, from, to)
}
