// Package payment owns the charge pipeline: an idempotent process operation
// backed by a durable payments table, with the terminal decision and the
// idempotency memo committed in one transaction.
package payment

import "time"

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusSuccess  Status = "SUCCESS"
	StatusFailed   Status = "FAILED"
	StatusRefunded Status = "REFUNDED"
)

type Payment struct {
	ID            int64
	UserID        int64
	BookingID     int64
	AmountCents   int64
	Status        Status
	PaymentMethod string
	TransactionID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ChargeCommand struct {
	UserID         int64
	BookingID      int64
	AmountCents    int64
	Method         string
	IdempotencyKey string
}

// ChargeResult is the memoized response: identical keys always observe the
// same terminal decision, byte for byte.
type ChargeResult struct {
	PaymentID     int64  `json:"payment_id"`
	Status        Status `json:"status"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
}
