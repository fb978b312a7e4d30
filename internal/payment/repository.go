package payment

import (
	"context"
	"time"

	"openbooking/internal/pkg/errs"
	"openbooking/internal/pkg/fault"
	"openbooking/internal/platform/db"

	"github.com/jackc/pgx/v5"
)

type Repository interface {
	// Insert persists a new payment row and returns its generated id.
	Insert(ctx context.Context, q db.DBTX, p Payment) (int64, error)
	// SetStatus writes the terminal decision. A payment is never rewritten
	// once terminal; callers only move PENDING forward.
	SetStatus(ctx context.Context, q db.DBTX, id int64, status Status, now time.Time) error
	Get(ctx context.Context, q db.DBTX, id int64) (Payment, error)
}

type pgRepository struct{}

func NewRepository() Repository {
	return pgRepository{}
}

func (pgRepository) Insert(ctx context.Context, q db.DBTX, p Payment) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO payments (user_id, booking_id, amount, status, payment_method, transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`,
		p.UserID, p.BookingID, p.AmountCents, p.Status, p.PaymentMethod, p.TransactionID, p.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, errs.Wrap(err, "failed to insert payment")
	}
	return id, nil
}

func (pgRepository) SetStatus(ctx context.Context, q db.DBTX, id int64, status Status, now time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE payments SET status = $2, updated_at = $3
		WHERE id = $1 AND status = 'PENDING'`,
		id, status, now)
	if err != nil {
		return errs.Wrap(err, "failed to update payment status")
	}
	return nil
}

func (pgRepository) Get(ctx context.Context, q db.DBTX, id int64) (Payment, error) {
	var p Payment
	err := q.QueryRow(ctx, `
		SELECT id, user_id, booking_id, amount, status, payment_method, transaction_id, created_at, updated_at
		FROM payments WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.UserID, &p.BookingID, &p.AmountCents, &p.Status, &p.PaymentMethod,
		&p.TransactionID, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return Payment{}, errs.Mark(errs.Newf("payment %d not found", id), fault.ErrNotFound)
	}
	if err != nil {
		return Payment{}, errs.Wrap(err, "failed to read payment")
	}
	return p, nil
}
