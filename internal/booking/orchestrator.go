package booking

import (
	"context"
	"log/slog"
	"time"

	"openbooking/internal/idempotency"
	"openbooking/internal/pkg/clock"
	"openbooking/internal/pkg/dates"
	"openbooking/internal/pkg/fault"
	"openbooking/internal/platform/db"
	"openbooking/internal/platform/events"
)

// Outcome is the saga's first-class result. PendingUnclear is not an error:
// the booking stays at its last durable step and the recovery worker owns it.
type Outcome string

const (
	OutcomeConfirmed       Outcome = "CONFIRMED"
	OutcomeBusinessFailure Outcome = "BUSINESS_FAILURE"
	OutcomePendingUnclear  Outcome = "PENDING_UNCLEAR"
)

type Result struct {
	Outcome Outcome
	Booking Booking
	// Err carries the business failure; nil for the other outcomes.
	Err error
}

// Orchestrator drives one booking through reserve, charge and confirm.
// saga_step is committed before and after every remote effect, so the
// recovery worker can always tell what may have happened remotely.
type Orchestrator struct {
	runner    db.TxRunner
	repo      Repository
	inventory InventoryClient
	payments  PaymentClient
	publisher events.Publisher
	clk       clock.Clock
	log       *slog.Logger
}

func NewOrchestrator(
	runner db.TxRunner,
	repo Repository,
	inventory InventoryClient,
	payments PaymentClient,
	publisher events.Publisher,
	clk clock.Clock,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		runner:    runner,
		repo:      repo,
		inventory: inventory,
		payments:  payments,
		publisher: publisher,
		clk:       clk,
		log:       log,
	}
}

// Run creates the booking and executes the pipeline. The returned Result is
// always meaningful; the error return is reserved for internal failures.
func (o *Orchestrator) Run(ctx context.Context, cmd CreateCommand) (Result, error) {
	var id int64
	err := o.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		now := o.clk.Now()
		b := Booking{
			UserID:       cmd.UserID,
			RoomID:       cmd.RoomID,
			CheckInDate:  dates.Truncate(cmd.CheckInDate),
			CheckOutDate: dates.Truncate(cmd.CheckOutDate),
			Quantity:     cmd.Quantity,
			Status:       StatusPending,
			SagaStep:     StepReserveSent,
			CreatedAt:    now,
		}
		var err error
		id, err = o.repo.Create(ctx, q, b)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	key := idempotency.BookingKey(id)

	reserveResp, err := o.inventory.Reserve(ctx, ReserveRequest{
		RoomID:         cmd.RoomID,
		CheckInDate:    dates.Format(cmd.CheckInDate),
		CheckOutDate:   dates.Format(cmd.CheckOutDate),
		Quantity:       cmd.Quantity,
		IdempotencyKey: key,
	})
	if err != nil {
		return o.failOrPending(ctx, id, err)
	}

	err = o.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		now := o.clk.Now()
		if err := o.repo.SetPrice(ctx, q, id, reserveResp.TotalPriceCents, now); err != nil {
			return err
		}
		return o.repo.SetStep(ctx, q, id, StepReserveOK, now)
	})
	if err != nil {
		return Result{}, err
	}

	return o.charge(ctx, id, key, false)
}

// charge runs the payment leg from RESERVE_OK onward, shared by the request
// path and recovery.
func (o *Orchestrator) charge(ctx context.Context, id int64, key string, viaRecovery bool) (Result, error) {
	b, err := o.bookingByID(ctx, id)
	if err != nil {
		return Result{}, err
	}

	if b.SagaStep != StepPaymentSent {
		err = o.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
			return o.repo.SetStep(ctx, q, id, StepPaymentSent, o.clk.Now())
		})
		if err != nil {
			return Result{}, err
		}
	}

	chargeResp, err := o.payments.Charge(ctx, ChargeRequest{
		UserID:         b.UserID,
		BookingID:      id,
		AmountCents:    b.TotalPriceCents,
		Method:         "CARD",
		IdempotencyKey: key,
	})
	if err != nil {
		return o.failOrPending(ctx, id, err)
	}
	if chargeResp.Status != "SUCCESS" {
		decline := fault.Businessf(fault.CodePaymentDeclined, "payment declined: %s", chargeResp.Message)
		return o.failClear(ctx, id, &chargeResp.PaymentID, decline)
	}

	return o.confirm(ctx, id, chargeResp.PaymentID, viaRecovery)
}

// confirm finalizes a paid booking: holds become permanent, the outcome is
// committed, and the confirmed event goes out.
func (o *Orchestrator) confirm(ctx context.Context, id int64, paymentID int64, viaRecovery bool) (Result, error) {
	if err := o.inventory.Confirm(ctx, id); err != nil {
		// The charge succeeded, so compensation is off the table. The booking
		// stays at PAYMENT_SENT; recovery re-drives the charge (answered from
		// the payment memo) and retries the confirm until the holds are gone.
		b, gerr := o.bookingByID(ctx, id)
		if gerr != nil {
			return Result{}, gerr
		}
		o.log.Warn("failed to confirm holds, leaving booking for recovery",
			"booking_id", id, "saga_step", b.SagaStep, "error", err.Error())
		return Result{Outcome: OutcomePendingUnclear, Booking: b}, nil
	}

	err := o.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		return o.repo.SetOutcome(ctx, q, id, StatusConfirmed, StepConfirmed, &paymentID, o.clk.Now())
	})
	if err != nil {
		return Result{}, err
	}

	b, err := o.bookingByID(ctx, id)
	if err != nil {
		return Result{}, err
	}

	o.publisher.BookingConfirmed(ctx, events.BookingConfirmed{
		BookingID:         b.ID,
		UserID:            b.UserID,
		RoomID:            b.RoomID,
		CheckInDate:       dates.Format(b.CheckInDate),
		CheckOutDate:      dates.Format(b.CheckOutDate),
		TotalPriceCents:   b.TotalPriceCents,
		Status:            string(b.Status),
		Timestamp:         o.clk.Now(),
		RecoveryConfirmed: viaRecovery,
	})

	o.log.Info("booking confirmed", "booking_id", id, "via_recovery", viaRecovery)
	return Result{Outcome: OutcomeConfirmed, Booking: b}, nil
}

// failOrPending routes a remote error: clear failures compensate and fail
// the booking, unclear ones leave it at its last committed step for recovery.
func (o *Orchestrator) failOrPending(ctx context.Context, id int64, cause error) (Result, error) {
	if fault.IsUnclear(cause) {
		b, err := o.bookingByID(ctx, id)
		if err != nil {
			return Result{}, err
		}
		o.log.Warn("remote outcome unclear, leaving booking for recovery",
			"booking_id", id, "saga_step", b.SagaStep, "error", cause.Error())
		return Result{Outcome: OutcomePendingUnclear, Booking: b}, nil
	}
	if fault.IsBusiness(cause) {
		return o.failClear(ctx, id, nil, cause)
	}
	return Result{}, cause
}

// failClear compensates and marks the booking FAILED. Release failures are
// logged but never change the outcome; release is idempotent by booking id.
func (o *Orchestrator) failClear(ctx context.Context, id int64, paymentID *int64, cause error) (Result, error) {
	o.compensate(ctx, id)

	err := o.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		return o.repo.SetOutcome(ctx, q, id, StatusFailed, StepFailed, paymentID, o.clk.Now())
	})
	if err != nil {
		return Result{}, err
	}

	b, err := o.bookingByID(ctx, id)
	if err != nil {
		return Result{}, err
	}
	o.log.Info("booking failed", "booking_id", id, "reason", cause.Error())
	return Result{Outcome: OutcomeBusinessFailure, Booking: b, Err: cause}, nil
}

func (o *Orchestrator) compensate(ctx context.Context, id int64) {
	b, err := o.bookingByID(ctx, id)
	if err != nil {
		o.log.Warn("failed to load booking for compensation", "booking_id", id, "error", err.Error())
		return
	}
	bookingID := id
	err = o.inventory.Release(ctx, ReleaseRequest{
		RoomID:       b.RoomID,
		CheckInDate:  dates.Format(b.CheckInDate),
		CheckOutDate: dates.Format(b.CheckOutDate),
		Quantity:     b.Quantity,
		BookingID:    &bookingID,
	})
	if err != nil {
		o.log.Warn("compensation release failed", "booking_id", id, "error", err.Error())
	}
}

func (o *Orchestrator) bookingByID(ctx context.Context, id int64) (Booking, error) {
	var b Booking
	err := o.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		var err error
		b, err = o.repo.Get(ctx, q, id)
		return err
	})
	return b, err
}

// AdvanceStuck resumes one stuck saga with the original idempotency key,
// under a row lock so a concurrent request-path retry cannot interleave.
// Unclear outcomes leave the row untouched for the next tick.
func (o *Orchestrator) AdvanceStuck(ctx context.Context, id int64, stuckCutoff, giveUpCutoff time.Time) error {
	var b Booking
	err := o.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		var err error
		b, err = o.repo.GetForUpdate(ctx, q, id)
		return err
	})
	if err != nil {
		return err
	}

	if b.Terminal() || !b.UpdatedAt.Before(stuckCutoff) {
		return nil
	}
	if b.UpdatedAt.Before(giveUpCutoff) {
		return o.giveUp(ctx, b)
	}

	key := idempotency.BookingKey(b.ID)
	switch b.SagaStep {
	case StepReserveSent:
		reserveResp, err := o.inventory.Reserve(ctx, ReserveRequest{
			RoomID:         b.RoomID,
			CheckInDate:    dates.Format(b.CheckInDate),
			CheckOutDate:   dates.Format(b.CheckOutDate),
			Quantity:       b.Quantity,
			IdempotencyKey: key,
		})
		if err != nil {
			if fault.IsUnclear(err) {
				o.log.Warn("recovery reserve still unclear", "booking_id", b.ID)
				return nil
			}
			_, err = o.failOrPending(ctx, b.ID, err)
			return err
		}

		err = o.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
			now := o.clk.Now()
			if err := o.repo.SetPrice(ctx, q, b.ID, reserveResp.TotalPriceCents, now); err != nil {
				return err
			}
			return o.repo.SetStep(ctx, q, b.ID, StepReserveOK, now)
		})
		if err != nil {
			return err
		}
		return o.advanceCharge(ctx, b.ID, key)

	case StepReserveOK, StepPaymentSent:
		return o.advanceCharge(ctx, b.ID, key)

	default:
		return nil
	}
}

func (o *Orchestrator) advanceCharge(ctx context.Context, id int64, key string) error {
	_, err := o.charge(ctx, id, key, true)
	return err
}

// giveUp terminates a saga that recovery could not advance. The policy is
// asymmetric: before any charge was sent the stock goes back, but once
// PAYMENT_SENT the money may have moved, so the holds stay for an operator
// to reconcile. Releasing a possibly-charged booking is the one outcome
// this system must never produce.
func (o *Orchestrator) giveUp(ctx context.Context, b Booking) error {
	switch b.SagaStep {
	case StepReserveSent, StepReserveOK:
		o.compensate(ctx, b.ID)
		o.log.Warn("gave up stuck booking, stock released", "booking_id", b.ID, "saga_step", b.SagaStep)
	case StepPaymentSent:
		o.log.Warn("gave up stuck booking at PAYMENT_SENT; NOT releasing, operator reconciliation required",
			"booking_id", b.ID, "updated_at", b.UpdatedAt)
	}

	return o.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		return o.repo.SetOutcome(ctx, q, b.ID, StatusFailed, StepFailed, nil, o.clk.Now())
	})
}
