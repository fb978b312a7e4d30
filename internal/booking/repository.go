package booking

import (
	"context"
	"time"

	"openbooking/internal/pkg/errs"
	"openbooking/internal/pkg/fault"
	"openbooking/internal/platform/db"

	"github.com/jackc/pgx/v5"
)

type Repository interface {
	// Create inserts the booking in its initial state and returns the id.
	Create(ctx context.Context, q db.DBTX, b Booking) (int64, error)
	Get(ctx context.Context, q db.DBTX, id int64) (Booking, error)
	// GetForUpdate locks the booking row so the request path and the
	// recovery worker cannot advance the same saga concurrently.
	GetForUpdate(ctx context.Context, q db.DBTX, id int64) (Booking, error)
	// SetStep advances saga_step and bumps updated_at.
	SetStep(ctx context.Context, q db.DBTX, id int64, step SagaStep, now time.Time) error
	// SetPrice records the total once the reserve response carries it.
	SetPrice(ctx context.Context, q db.DBTX, id int64, totalCents int64, now time.Time) error
	// SetOutcome writes the terminal status, step and optional payment id.
	SetOutcome(ctx context.Context, q db.DBTX, id int64, status Status, step SagaStep, paymentID *int64, now time.Time) error
	ListByUser(ctx context.Context, q db.DBTX, userID int64) ([]Booking, error)
	// FindStuck returns ids of bookings sitting mid-pipeline since before cutoff.
	FindStuck(ctx context.Context, q db.DBTX, cutoff time.Time, limit int) ([]int64, error)
}

const bookingColumns = `id, user_id, room_id, check_in_date, check_out_date, quantity,
	total_price, status, saga_step, payment_id, created_at, updated_at`

type pgRepository struct{}

func NewRepository() Repository {
	return pgRepository{}
}

func (pgRepository) Create(ctx context.Context, q db.DBTX, b Booking) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
		INSERT INTO bookings (user_id, room_id, check_in_date, check_out_date, quantity,
			total_price, status, saga_step, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id`,
		b.UserID, b.RoomID, b.CheckInDate, b.CheckOutDate, b.Quantity,
		b.TotalPriceCents, b.Status, b.SagaStep, b.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, errs.Wrap(err, "failed to insert booking")
	}
	return id, nil
}

func (pgRepository) Get(ctx context.Context, q db.DBTX, id int64) (Booking, error) {
	return scanBooking(q.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
}

func (pgRepository) GetForUpdate(ctx context.Context, q db.DBTX, id int64) (Booking, error) {
	return scanBooking(q.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id))
}

func scanBooking(row pgx.Row) (Booking, error) {
	var b Booking
	err := row.Scan(&b.ID, &b.UserID, &b.RoomID, &b.CheckInDate, &b.CheckOutDate, &b.Quantity,
		&b.TotalPriceCents, &b.Status, &b.SagaStep, &b.PaymentID, &b.CreatedAt, &b.UpdatedAt)
	if err == pgx.ErrNoRows {
		return Booking{}, errs.Mark(errs.New("booking not found"), fault.ErrNotFound)
	}
	if err != nil {
		return Booking{}, errs.Wrap(err, "failed to read booking")
	}
	return b, nil
}

func (pgRepository) SetStep(ctx context.Context, q db.DBTX, id int64, step SagaStep, now time.Time) error {
	_, err := q.Exec(ctx,
		`UPDATE bookings SET saga_step = $2, updated_at = $3 WHERE id = $1`,
		id, step, now)
	if err != nil {
		return errs.Wrapf(err, "failed to set saga step %s", step)
	}
	return nil
}

func (pgRepository) SetPrice(ctx context.Context, q db.DBTX, id int64, totalCents int64, now time.Time) error {
	_, err := q.Exec(ctx,
		`UPDATE bookings SET total_price = $2, updated_at = $3 WHERE id = $1`,
		id, totalCents, now)
	if err != nil {
		return errs.Wrap(err, "failed to set booking price")
	}
	return nil
}

func (pgRepository) SetOutcome(ctx context.Context, q db.DBTX, id int64, status Status, step SagaStep, paymentID *int64, now time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE bookings SET status = $2, saga_step = $3, payment_id = COALESCE($4, payment_id), updated_at = $5
		WHERE id = $1`,
		id, status, step, paymentID, now)
	if err != nil {
		return errs.Wrapf(err, "failed to set booking outcome %s", status)
	}
	return nil
}

func (pgRepository) ListByUser(ctx context.Context, q db.DBTX, userID int64) ([]Booking, error) {
	rows, err := q.Query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, errs.Wrap(err, "failed to list bookings")
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.UserID, &b.RoomID, &b.CheckInDate, &b.CheckOutDate, &b.Quantity,
			&b.TotalPriceCents, &b.Status, &b.SagaStep, &b.PaymentID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, errs.Wrap(err, "failed to scan booking")
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (pgRepository) FindStuck(ctx context.Context, q db.DBTX, cutoff time.Time, limit int) ([]int64, error) {
	rows, err := q.Query(ctx, `
		SELECT id FROM bookings
		WHERE saga_step IN ('RESERVE_SENT', 'RESERVE_OK', 'PAYMENT_SENT')
		  AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, errs.Wrap(err, "failed to query stuck bookings")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Wrap(err, "failed to scan booking id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
