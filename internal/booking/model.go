// Package booking drives the reserve / charge / confirm saga. The booking
// row is the saga's durable state: saga_step is written before and after
// every remote effect so a crash at any point leaves enough to recover from.
package booking

import "time"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

type SagaStep string

const (
	StepReserveSent SagaStep = "RESERVE_SENT"
	StepReserveOK   SagaStep = "RESERVE_OK"
	StepPaymentSent SagaStep = "PAYMENT_SENT"
	StepConfirmed   SagaStep = "CONFIRMED"
	StepFailed      SagaStep = "FAILED"
)

type Booking struct {
	ID              int64
	UserID          int64
	RoomID          int64
	CheckInDate     time.Time
	CheckOutDate    time.Time
	Quantity        int
	TotalPriceCents int64
	Status          Status
	SagaStep        SagaStep
	PaymentID       *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Terminal reports whether the booking can no longer change.
func (b Booking) Terminal() bool {
	switch b.Status {
	case StatusConfirmed, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

type CreateCommand struct {
	UserID       int64
	RoomID       int64
	CheckInDate  time.Time
	CheckOutDate time.Time
	Quantity     int
}
