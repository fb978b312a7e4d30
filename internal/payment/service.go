package payment

import (
	"context"
	"encoding/json"
	"github.com/cockroachdb/errors"
	"log/slog"

	"openbooking/internal/idempotency"
	"openbooking/internal/pkg/clock"
	"openbooking/internal/pkg/errs"
	"openbooking/internal/pkg/fault"
	"openbooking/internal/platform/db"

	"github.com/google/uuid"
)

type Service struct {
	pool    db.DBTX
	runner  db.TxRunner
	repo    Repository
	gateway Gateway
	idem    idempotency.Store
	clk     clock.Clock
	log     *slog.Logger
}

func NewService(
	pool db.DBTX,
	runner db.TxRunner,
	repo Repository,
	gateway Gateway,
	idem idempotency.Store,
	clk clock.Clock,
	log *slog.Logger,
) *Service {
	return &Service{
		pool:    pool,
		runner:  runner,
		repo:    repo,
		gateway: gateway,
		idem:    idem,
		clk:     clk,
		log:     log,
	}
}

// Charge runs the idempotent charge: a PENDING row, one gateway decision,
// the terminal status and the idempotency memo in a single transaction.
// A declined charge is a normal result with Status FAILED, not an error.
func (s *Service) Charge(ctx context.Context, cmd ChargeCommand) (ChargeResult, error) {
	if cmd.AmountCents <= 0 {
		return ChargeResult{}, fault.Business(fault.CodeInvalidRequest, "amount must be positive")
	}

	if cmd.IdempotencyKey != "" {
		payload, ok, err := s.idem.Lookup(ctx, s.pool, cmd.IdempotencyKey)
		if err != nil {
			return ChargeResult{}, err
		}
		if ok {
			return decodeChargeResult(payload)
		}
	}

	var result ChargeResult
	err := s.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		now := s.clk.Now()
		p := Payment{
			UserID:        cmd.UserID,
			BookingID:     cmd.BookingID,
			AmountCents:   cmd.AmountCents,
			Status:        StatusPending,
			PaymentMethod: cmd.Method,
			TransactionID: "txn-" + uuid.NewString(),
			CreatedAt:     now,
		}
		id, err := s.repo.Insert(ctx, q, p)
		if err != nil {
			return err
		}

		approved, message := s.gateway.Charge(ctx, cmd.AmountCents)
		status := StatusFailed
		if approved {
			status = StatusSuccess
		}
		if err := s.repo.SetStatus(ctx, q, id, status, s.clk.Now()); err != nil {
			return err
		}

		result = ChargeResult{
			PaymentID:     id,
			Status:        status,
			Message:       message,
			TransactionID: p.TransactionID,
		}

		if cmd.IdempotencyKey != "" {
			payload, err := json.Marshal(result)
			if err != nil {
				return errs.Wrap(err, "failed to encode charge response")
			}
			if err := s.idem.Save(ctx, q, cmd.IdempotencyKey, payload, now); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, idempotency.ErrDuplicateKey) {
		return s.storedResult(ctx, cmd.IdempotencyKey)
	}
	if err != nil {
		return ChargeResult{}, err
	}

	if cmd.IdempotencyKey != "" {
		if payload, err := json.Marshal(result); err == nil {
			s.idem.Warm(ctx, cmd.IdempotencyKey, payload)
		}
	}

	s.log.Info("processed charge",
		"booking_id", cmd.BookingID,
		"payment_id", result.PaymentID,
		"amount_cents", cmd.AmountCents,
		"status", result.Status)
	return result, nil
}

func (s *Service) storedResult(ctx context.Context, key string) (ChargeResult, error) {
	payload, ok, err := s.idem.Lookup(ctx, s.pool, key)
	if err != nil {
		return ChargeResult{}, err
	}
	if !ok {
		return ChargeResult{}, errs.Newf("idempotency record for %s vanished after duplicate insert", key)
	}
	return decodeChargeResult(payload)
}

func decodeChargeResult(payload []byte) (ChargeResult, error) {
	var r ChargeResult
	if err := json.Unmarshal(payload, &r); err != nil {
		return ChargeResult{}, errs.Wrap(err, "failed to decode stored charge response")
	}
	return r, nil
}

// Get returns a payment by id.
func (s *Service) Get(ctx context.Context, id int64) (Payment, error) {
	return s.repo.Get(ctx, s.pool, id)
}
