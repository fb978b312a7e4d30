//go:build unit

package booking_test

import (
	"context"
	"sync"
	"time"

	"openbooking/internal/booking"
	"openbooking/internal/pkg/fault"
	"openbooking/internal/platform/db"
	"openbooking/internal/platform/events"
)

type passRunner struct{}

func (passRunner) InTx(ctx context.Context, fn func(ctx context.Context, q db.DBTX) error) error {
	return fn(ctx, nil)
}

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[int64]booking.Booking
	nextID   int64
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[int64]booking.Booking)}
}

func (r *fakeBookingRepo) Create(_ context.Context, _ db.DBTX, b booking.Booking) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	b.ID = r.nextID
	b.UpdatedAt = b.CreatedAt
	r.bookings[b.ID] = b
	return b.ID, nil
}

func (r *fakeBookingRepo) Get(_ context.Context, _ db.DBTX, id int64) (booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return booking.Booking{}, fault.ErrNotFound
	}
	return b, nil
}

func (r *fakeBookingRepo) GetForUpdate(ctx context.Context, q db.DBTX, id int64) (booking.Booking, error) {
	return r.Get(ctx, q, id)
}

func (r *fakeBookingRepo) SetStep(_ context.Context, _ db.DBTX, id int64, step booking.SagaStep, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.bookings[id]
	b.SagaStep = step
	b.UpdatedAt = now
	r.bookings[id] = b
	return nil
}

func (r *fakeBookingRepo) SetPrice(_ context.Context, _ db.DBTX, id int64, totalCents int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.bookings[id]
	b.TotalPriceCents = totalCents
	b.UpdatedAt = now
	r.bookings[id] = b
	return nil
}

func (r *fakeBookingRepo) SetOutcome(_ context.Context, _ db.DBTX, id int64, status booking.Status, step booking.SagaStep, paymentID *int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.bookings[id]
	b.Status = status
	b.SagaStep = step
	if paymentID != nil {
		b.PaymentID = paymentID
	}
	b.UpdatedAt = now
	r.bookings[id] = b
	return nil
}

func (r *fakeBookingRepo) ListByUser(_ context.Context, _ db.DBTX, userID int64) ([]booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []booking.Booking
	for _, b := range r.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) FindStuck(_ context.Context, _ db.DBTX, cutoff time.Time, _ int) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for id, b := range r.bookings {
		switch b.SagaStep {
		case booking.StepReserveSent, booking.StepReserveOK, booking.StepPaymentSent:
			if b.UpdatedAt.Before(cutoff) {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// set force-writes a booking's saga position, for recovery scenarios.
func (r *fakeBookingRepo) set(id int64, mutate func(b *booking.Booking)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.bookings[id]
	mutate(&b)
	r.bookings[id] = b
}

// fakeInventoryClient replays scripted reserve outcomes and records calls.
type fakeInventoryClient struct {
	mu           sync.Mutex
	reserveQueue []reserveOutcome
	reserveCalls []booking.ReserveRequest
	confirmCalls []int64
	confirmErr   error
	releaseCalls []booking.ReleaseRequest
	releaseErr   error
}

type reserveOutcome struct {
	resp booking.ReserveResponse
	err  error
}

func (c *fakeInventoryClient) queueReserve(resp booking.ReserveResponse, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reserveQueue = append(c.reserveQueue, reserveOutcome{resp: resp, err: err})
}

func (c *fakeInventoryClient) Reserve(_ context.Context, req booking.ReserveRequest) (booking.ReserveResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reserveCalls = append(c.reserveCalls, req)
	if len(c.reserveQueue) == 0 {
		return booking.ReserveResponse{Status: "RESERVED"}, nil
	}
	next := c.reserveQueue[0]
	c.reserveQueue = c.reserveQueue[1:]
	return next.resp, next.err
}

func (c *fakeInventoryClient) Confirm(_ context.Context, bookingID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmCalls = append(c.confirmCalls, bookingID)
	return c.confirmErr
}

func (c *fakeInventoryClient) Release(_ context.Context, req booking.ReleaseRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseCalls = append(c.releaseCalls, req)
	return c.releaseErr
}

type fakePaymentClient struct {
	mu          sync.Mutex
	chargeQueue []chargeOutcome
	chargeCalls []booking.ChargeRequest
}

type chargeOutcome struct {
	resp booking.ChargeResponse
	err  error
}

func (c *fakePaymentClient) queueCharge(resp booking.ChargeResponse, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chargeQueue = append(c.chargeQueue, chargeOutcome{resp: resp, err: err})
}

func (c *fakePaymentClient) Charge(_ context.Context, req booking.ChargeRequest) (booking.ChargeResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chargeCalls = append(c.chargeCalls, req)
	if len(c.chargeQueue) == 0 {
		return booking.ChargeResponse{PaymentID: 900, Status: "SUCCESS", TransactionID: "txn-test"}, nil
	}
	next := c.chargeQueue[0]
	c.chargeQueue = c.chargeQueue[1:]
	return next.resp, next.err
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.BookingConfirmed
}

func (p *capturePublisher) BookingConfirmed(_ context.Context, ev events.BookingConfirmed) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}
