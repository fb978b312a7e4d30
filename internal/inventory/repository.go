package inventory

import (
	"context"
	"time"

	"openbooking/internal/pkg/errs"
	"openbooking/internal/pkg/fault"
	"openbooking/internal/platform/db"

	"github.com/jackc/pgx/v5"
)

// Repository is the persistence surface the service and strategies depend on.
// Every method runs against the caller's DBTX so it participates in whatever
// transaction encloses it.
type Repository interface {
	// DecrementIfAvailable applies the guarded decrement. Returns false when
	// the row was not updated (missing or insufficient stock).
	DecrementIfAvailable(ctx context.Context, q db.DBTX, roomID int64, date time.Time, qty int) (bool, error)
	// NightForUpdate reads one availability row under a row lock.
	NightForUpdate(ctx context.Context, q db.DBTX, roomID int64, date time.Time) (Availability, error)
	Night(ctx context.Context, q db.DBTX, roomID int64, date time.Time) (Availability, error)
	// Decrement subtracts without a guard; only valid after NightForUpdate
	// has verified stock under the row lock.
	Decrement(ctx context.Context, q db.DBTX, roomID int64, date time.Time, qty int) error
	// DecrementVersioned subtracts only when the version still matches,
	// bumping it. Returns false on a version conflict.
	DecrementVersioned(ctx context.Context, q db.DBTX, roomID int64, date time.Time, qty int, version int64) (bool, error)
	Credit(ctx context.Context, q db.DBTX, roomID int64, date time.Time, qty int) error

	InsertHold(ctx context.Context, q db.DBTX, h Hold) error
	HoldsByBooking(ctx context.Context, q db.DBTX, bookingID int64) ([]Hold, error)
	DeleteHoldsByBooking(ctx context.Context, q db.DBTX, bookingID int64) (int64, error)
	ExpiredHolds(ctx context.Context, q db.DBTX, now time.Time, limit int) ([]Hold, error)
	DeleteHold(ctx context.Context, q db.DBTX, id int64) error

	UpsertNight(ctx context.Context, q db.DBTX, a Availability) error
	NightsInRange(ctx context.Context, q db.DBTX, roomID int64, from, to time.Time) ([]Availability, error)
}

type pgRepository struct{}

func NewRepository() Repository {
	return pgRepository{}
}

func (pgRepository) DecrementIfAvailable(ctx context.Context, q db.DBTX, roomID int64, date time.Time, qty int) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE room_availability
		SET available_count = available_count - $3, version = version + 1
		WHERE room_id = $1 AND availability_date = $2 AND available_count >= $3`,
		roomID, date, qty)
	if err != nil {
		return false, errs.Wrap(err, "failed to decrement availability")
	}
	return tag.RowsAffected() == 1, nil
}

func (pgRepository) NightForUpdate(ctx context.Context, q db.DBTX, roomID int64, date time.Time) (Availability, error) {
	return scanNight(q.QueryRow(ctx, `
		SELECT room_id, availability_date, available_count, price_per_night, version
		FROM room_availability
		WHERE room_id = $1 AND availability_date = $2
		FOR UPDATE`,
		roomID, date))
}

func (pgRepository) Night(ctx context.Context, q db.DBTX, roomID int64, date time.Time) (Availability, error) {
	return scanNight(q.QueryRow(ctx, `
		SELECT room_id, availability_date, available_count, price_per_night, version
		FROM room_availability
		WHERE room_id = $1 AND availability_date = $2`,
		roomID, date))
}

func scanNight(row pgx.Row) (Availability, error) {
	var a Availability
	err := row.Scan(&a.RoomID, &a.Date, &a.AvailableCount, &a.PricePerNight, &a.Version)
	if err == pgx.ErrNoRows {
		return Availability{}, errs.Mark(errs.New("availability row missing"), fault.ErrNotFound)
	}
	if err != nil {
		return Availability{}, errs.Wrap(err, "failed to read availability")
	}
	return a, nil
}

func (pgRepository) Decrement(ctx context.Context, q db.DBTX, roomID int64, date time.Time, qty int) error {
	_, err := q.Exec(ctx, `
		UPDATE room_availability
		SET available_count = available_count - $3, version = version + 1
		WHERE room_id = $1 AND availability_date = $2`,
		roomID, date, qty)
	if err != nil {
		return errs.Wrap(err, "failed to decrement availability")
	}
	return nil
}

func (pgRepository) DecrementVersioned(ctx context.Context, q db.DBTX, roomID int64, date time.Time, qty int, version int64) (bool, error) {
	tag, err := q.Exec(ctx, `
		UPDATE room_availability
		SET available_count = available_count - $3, version = version + 1
		WHERE room_id = $1 AND availability_date = $2 AND version = $4 AND available_count >= $3`,
		roomID, date, qty, version)
	if err != nil {
		return false, errs.Wrap(err, "failed to decrement availability")
	}
	return tag.RowsAffected() == 1, nil
}

func (pgRepository) Credit(ctx context.Context, q db.DBTX, roomID int64, date time.Time, qty int) error {
	_, err := q.Exec(ctx, `
		UPDATE room_availability
		SET available_count = available_count + $3, version = version + 1
		WHERE room_id = $1 AND availability_date = $2`,
		roomID, date, qty)
	if err != nil {
		return errs.Wrap(err, "failed to credit availability")
	}
	return nil
}

func (pgRepository) InsertHold(ctx context.Context, q db.DBTX, h Hold) error {
	_, err := q.Exec(ctx, `
		INSERT INTO reservation_holds (booking_id, room_id, availability_date, quantity, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		h.BookingID, h.RoomID, h.Date, h.Quantity, h.ExpiresAt, h.CreatedAt)
	if err != nil {
		return errs.Wrap(err, "failed to insert reservation hold")
	}
	return nil
}

func (pgRepository) HoldsByBooking(ctx context.Context, q db.DBTX, bookingID int64) ([]Hold, error) {
	rows, err := q.Query(ctx, `
		SELECT id, booking_id, room_id, availability_date, quantity, expires_at, created_at
		FROM reservation_holds
		WHERE booking_id = $1
		ORDER BY availability_date`,
		bookingID)
	if err != nil {
		return nil, errs.Wrap(err, "failed to query holds")
	}
	defer rows.Close()
	return scanHolds(rows)
}

func (pgRepository) DeleteHoldsByBooking(ctx context.Context, q db.DBTX, bookingID int64) (int64, error) {
	tag, err := q.Exec(ctx, `DELETE FROM reservation_holds WHERE booking_id = $1`, bookingID)
	if err != nil {
		return 0, errs.Wrap(err, "failed to delete holds")
	}
	return tag.RowsAffected(), nil
}

func (pgRepository) ExpiredHolds(ctx context.Context, q db.DBTX, now time.Time, limit int) ([]Hold, error) {
	rows, err := q.Query(ctx, `
		SELECT id, booking_id, room_id, availability_date, quantity, expires_at, created_at
		FROM reservation_holds
		WHERE expires_at < $1
		ORDER BY expires_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		now, limit)
	if err != nil {
		return nil, errs.Wrap(err, "failed to query expired holds")
	}
	defer rows.Close()
	return scanHolds(rows)
}

func (pgRepository) DeleteHold(ctx context.Context, q db.DBTX, id int64) error {
	_, err := q.Exec(ctx, `DELETE FROM reservation_holds WHERE id = $1`, id)
	if err != nil {
		return errs.Wrap(err, "failed to delete hold")
	}
	return nil
}

func (pgRepository) UpsertNight(ctx context.Context, q db.DBTX, a Availability) error {
	_, err := q.Exec(ctx, `
		INSERT INTO room_availability (room_id, availability_date, available_count, price_per_night, version)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (room_id, availability_date)
		DO UPDATE SET available_count = EXCLUDED.available_count,
		              price_per_night = EXCLUDED.price_per_night,
		              version = room_availability.version + 1`,
		a.RoomID, a.Date, a.AvailableCount, a.PricePerNight)
	if err != nil {
		return errs.Wrap(err, "failed to upsert availability")
	}
	return nil
}

func (pgRepository) NightsInRange(ctx context.Context, q db.DBTX, roomID int64, from, to time.Time) ([]Availability, error) {
	rows, err := q.Query(ctx, `
		SELECT room_id, availability_date, available_count, price_per_night, version
		FROM room_availability
		WHERE room_id = $1 AND availability_date >= $2 AND availability_date < $3
		ORDER BY availability_date`,
		roomID, from, to)
	if err != nil {
		return nil, errs.Wrap(err, "failed to query availability range")
	}
	defer rows.Close()

	var out []Availability
	for rows.Next() {
		var a Availability
		if err := rows.Scan(&a.RoomID, &a.Date, &a.AvailableCount, &a.PricePerNight, &a.Version); err != nil {
			return nil, errs.Wrap(err, "failed to scan availability")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanHolds(rows pgx.Rows) ([]Hold, error) {
	var out []Hold
	for rows.Next() {
		var h Hold
		if err := rows.Scan(&h.ID, &h.BookingID, &h.RoomID, &h.Date, &h.Quantity, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, errs.Wrap(err, "failed to scan hold")
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
