//go:build unit

package booking_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"openbooking/internal/booking"
	"openbooking/internal/pkg/clock"
	"openbooking/internal/pkg/config"
	"openbooking/internal/pkg/errs"
	"openbooking/internal/pkg/fault"

	"github.com/stretchr/testify/suite"
)

type OrchestratorTestSuite struct {
	suite.Suite
	repo      *fakeBookingRepo
	inventory *fakeInventoryClient
	payments  *fakePaymentClient
	publisher *capturePublisher
	clk       *clock.FakeClock
	cfg       config.BookingConfig
	orch      *booking.Orchestrator
	svc       *booking.Service
}

func (s *OrchestratorTestSuite) SetupTest() {
	s.repo = newFakeBookingRepo()
	s.inventory = &fakeInventoryClient{}
	s.payments = &fakePaymentClient{}
	s.publisher = &capturePublisher{}
	s.clk = clock.NewFakeClock(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	s.cfg = config.NewTestConfig().Booking
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.orch = booking.NewOrchestrator(passRunner{}, s.repo, s.inventory, s.payments, s.publisher, s.clk, log)
	s.svc = booking.NewService(passRunner{}, s.repo, s.orch)
}

func (s *OrchestratorTestSuite) createCmd() booking.CreateCommand {
	return booking.CreateCommand{
		UserID:       1,
		RoomID:       101,
		CheckInDate:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		CheckOutDate: time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
		Quantity:     2,
	}
}

func unclearErr() error {
	return fault.Unclear(errs.New("request timed out"), "remote unavailable")
}

func (s *OrchestratorTestSuite) TestHappyPathConfirms() {
	s.inventory.queueReserve(booking.ReserveResponse{
		ReservationID: "res-1", TotalPriceCents: 40000, Status: "RESERVED",
	}, nil)
	s.payments.queueCharge(booking.ChargeResponse{
		PaymentID: 7, Status: "SUCCESS", TransactionID: "txn-1",
	}, nil)

	result, err := s.svc.Create(context.Background(), s.createCmd())
	s.Require().NoError(err)

	s.Equal(booking.OutcomeConfirmed, result.Outcome)
	s.Equal(booking.StatusConfirmed, result.Booking.Status)
	s.Equal(booking.StepConfirmed, result.Booking.SagaStep)
	s.Equal(int64(40000), result.Booking.TotalPriceCents)
	s.Require().NotNil(result.Booking.PaymentID)
	s.Equal(int64(7), *result.Booking.PaymentID)

	// Both remote calls carry the booking-derived key.
	s.Require().Len(s.inventory.reserveCalls, 1)
	s.Equal("booking-1", s.inventory.reserveCalls[0].IdempotencyKey)
	s.Require().Len(s.payments.chargeCalls, 1)
	s.Equal("booking-1", s.payments.chargeCalls[0].IdempotencyKey)
	s.Equal(int64(40000), s.payments.chargeCalls[0].AmountCents)

	s.Equal([]int64{1}, s.inventory.confirmCalls)
	s.Empty(s.inventory.releaseCalls)

	s.Require().Len(s.publisher.events, 1)
	s.Equal(int64(1), s.publisher.events[0].BookingID)
	s.False(s.publisher.events[0].RecoveryConfirmed)
}

func (s *OrchestratorTestSuite) TestReserveClearFailureCompensatesAndFails() {
	s.inventory.queueReserve(booking.ReserveResponse{},
		fault.Business(fault.CodeInsufficientAvailability, "no rooms"))

	result, err := s.svc.Create(context.Background(), s.createCmd())
	s.Require().NoError(err)

	s.Equal(booking.OutcomeBusinessFailure, result.Outcome)
	code, ok := fault.BusinessCode(result.Err)
	s.Require().True(ok)
	s.Equal(fault.CodeInsufficientAvailability, code)

	s.Equal(booking.StatusFailed, result.Booking.Status)
	s.Equal(booking.StepFailed, result.Booking.SagaStep)
	s.Require().Len(s.inventory.releaseCalls, 1)
	s.Require().NotNil(s.inventory.releaseCalls[0].BookingID)
	s.Equal(int64(1), *s.inventory.releaseCalls[0].BookingID)
	s.Empty(s.publisher.events)
}

func (s *OrchestratorTestSuite) TestReserveUnclearLeavesBookingForRecovery() {
	s.inventory.queueReserve(booking.ReserveResponse{}, unclearErr())

	result, err := s.svc.Create(context.Background(), s.createCmd())
	s.Require().NoError(err)

	s.Equal(booking.OutcomePendingUnclear, result.Outcome)
	s.Equal(booking.StatusPending, result.Booking.Status)
	s.Equal(booking.StepReserveSent, result.Booking.SagaStep)
	s.Empty(s.inventory.releaseCalls)
	s.Empty(s.payments.chargeCalls)
}

func (s *OrchestratorTestSuite) TestPaymentDeclineReleasesAndFails() {
	s.inventory.queueReserve(booking.ReserveResponse{TotalPriceCents: 40000, Status: "RESERVED"}, nil)
	s.payments.queueCharge(booking.ChargeResponse{
		PaymentID: 7, Status: "FAILED", Message: "payment declined by gateway",
	}, nil)

	result, err := s.svc.Create(context.Background(), s.createCmd())
	s.Require().NoError(err)

	s.Equal(booking.OutcomeBusinessFailure, result.Outcome)
	code, ok := fault.BusinessCode(result.Err)
	s.Require().True(ok)
	s.Equal(fault.CodePaymentDeclined, code)

	s.Equal(booking.StatusFailed, result.Booking.Status)
	s.Require().Len(s.inventory.releaseCalls, 1)
	s.Empty(s.inventory.confirmCalls)
	s.Empty(s.publisher.events)
}

func (s *OrchestratorTestSuite) TestPaymentUnclearStaysAtPaymentSent() {
	s.inventory.queueReserve(booking.ReserveResponse{TotalPriceCents: 40000, Status: "RESERVED"}, nil)
	s.payments.queueCharge(booking.ChargeResponse{}, unclearErr())

	result, err := s.svc.Create(context.Background(), s.createCmd())
	s.Require().NoError(err)

	s.Equal(booking.OutcomePendingUnclear, result.Outcome)
	s.Equal(booking.StepPaymentSent, result.Booking.SagaStep)
	// Never compensate when the charge may have gone through.
	s.Empty(s.inventory.releaseCalls)
	s.Empty(s.publisher.events)
}

func (s *OrchestratorTestSuite) TestConfirmFailureLeavesBookingForRecovery() {
	s.inventory.queueReserve(booking.ReserveResponse{TotalPriceCents: 40000, Status: "RESERVED"}, nil)
	s.payments.queueCharge(booking.ChargeResponse{PaymentID: 7, Status: "SUCCESS"}, nil)
	s.inventory.confirmErr = unclearErr()

	result, err := s.svc.Create(context.Background(), s.createCmd())
	s.Require().NoError(err)

	// The charge went through but the holds are still pending deletion, so
	// the booking must not report CONFIRMED yet and must never compensate.
	s.Equal(booking.OutcomePendingUnclear, result.Outcome)
	s.Equal(booking.StatusPending, result.Booking.Status)
	s.Equal(booking.StepPaymentSent, result.Booking.SagaStep)
	s.Require().Len(s.inventory.confirmCalls, 1)
	s.Empty(s.inventory.releaseCalls)
	s.Empty(s.publisher.events)

	// Once inventory answers again, recovery re-drives the charge with the
	// same key and completes the confirm.
	s.inventory.confirmErr = nil
	s.payments.queueCharge(booking.ChargeResponse{PaymentID: 7, Status: "SUCCESS"}, nil)
	s.clk.Advance(30 * time.Minute)
	stuck, giveUp := s.cutoffs()
	s.Require().NoError(s.orch.AdvanceStuck(context.Background(), result.Booking.ID, stuck, giveUp))

	b, err := s.repo.Get(context.Background(), nil, result.Booking.ID)
	s.Require().NoError(err)
	s.Equal(booking.StatusConfirmed, b.Status)
	s.Equal(booking.StepConfirmed, b.SagaStep)
	s.Equal([]int64{1, 1}, s.inventory.confirmCalls)
	s.Equal("booking-1", s.payments.chargeCalls[1].IdempotencyKey)
	s.Require().Len(s.publisher.events, 1)
	s.True(s.publisher.events[0].RecoveryConfirmed)
}

func (s *OrchestratorTestSuite) stuckBooking(step booking.SagaStep, age time.Duration) int64 {
	id, err := s.repo.Create(context.Background(), nil, booking.Booking{
		UserID:       1,
		RoomID:       101,
		CheckInDate:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		CheckOutDate: time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
		Quantity:     2,
		Status:       booking.StatusPending,
		SagaStep:     booking.StepReserveSent,
		CreatedAt:    s.clk.Now().Add(-age),
	})
	s.Require().NoError(err)
	s.repo.set(id, func(b *booking.Booking) {
		b.SagaStep = step
		b.TotalPriceCents = 40000
		b.UpdatedAt = s.clk.Now().Add(-age)
	})
	return id
}

func (s *OrchestratorTestSuite) cutoffs() (stuck, giveUp time.Time) {
	now := s.clk.Now()
	return now.Add(-s.cfg.StuckThreshold()), now.Add(-s.cfg.GiveUpThreshold())
}

func (s *OrchestratorTestSuite) TestRecoveryAdvancesPaymentSentToConfirmed() {
	id := s.stuckBooking(booking.StepPaymentSent, 30*time.Minute)
	s.payments.queueCharge(booking.ChargeResponse{PaymentID: 7, Status: "SUCCESS"}, nil)

	stuck, giveUp := s.cutoffs()
	s.Require().NoError(s.orch.AdvanceStuck(context.Background(), id, stuck, giveUp))

	b, err := s.repo.Get(context.Background(), nil, id)
	s.Require().NoError(err)
	s.Equal(booking.StatusConfirmed, b.Status)

	// Recovery retries with the original key, so the charge is deduplicated.
	s.Require().Len(s.payments.chargeCalls, 1)
	s.Equal("booking-1", s.payments.chargeCalls[0].IdempotencyKey)

	s.Require().Len(s.publisher.events, 1)
	s.True(s.publisher.events[0].RecoveryConfirmed)
}

func (s *OrchestratorTestSuite) TestRecoveryAdvancesReserveSentThroughFullPipeline() {
	id := s.stuckBooking(booking.StepReserveSent, 30*time.Minute)
	s.inventory.queueReserve(booking.ReserveResponse{TotalPriceCents: 40000, Status: "RESERVED"}, nil)
	s.payments.queueCharge(booking.ChargeResponse{PaymentID: 7, Status: "SUCCESS"}, nil)

	stuck, giveUp := s.cutoffs()
	s.Require().NoError(s.orch.AdvanceStuck(context.Background(), id, stuck, giveUp))

	b, err := s.repo.Get(context.Background(), nil, id)
	s.Require().NoError(err)
	s.Equal(booking.StatusConfirmed, b.Status)
	s.Equal(int64(40000), b.TotalPriceCents)
	s.Require().Len(s.publisher.events, 1)
	s.True(s.publisher.events[0].RecoveryConfirmed)
}

func (s *OrchestratorTestSuite) TestRecoveryLeavesUnclearUntouched() {
	id := s.stuckBooking(booking.StepPaymentSent, 30*time.Minute)
	s.payments.queueCharge(booking.ChargeResponse{}, unclearErr())

	stuck, giveUp := s.cutoffs()
	s.Require().NoError(s.orch.AdvanceStuck(context.Background(), id, stuck, giveUp))

	b, err := s.repo.Get(context.Background(), nil, id)
	s.Require().NoError(err)
	s.Equal(booking.StatusPending, b.Status)
	s.Equal(booking.StepPaymentSent, b.SagaStep)
	s.Empty(s.inventory.releaseCalls)
}

func (s *OrchestratorTestSuite) TestRecoverySkipsFreshAndTerminalBookings() {
	fresh := s.stuckBooking(booking.StepPaymentSent, time.Minute)
	terminal := s.stuckBooking(booking.StepPaymentSent, 30*time.Minute)
	s.repo.set(terminal, func(b *booking.Booking) {
		b.Status = booking.StatusConfirmed
		b.SagaStep = booking.StepConfirmed
	})

	stuck, giveUp := s.cutoffs()
	s.Require().NoError(s.orch.AdvanceStuck(context.Background(), fresh, stuck, giveUp))
	s.Require().NoError(s.orch.AdvanceStuck(context.Background(), terminal, stuck, giveUp))

	s.Empty(s.payments.chargeCalls)
	s.Empty(s.inventory.reserveCalls)
}

func (s *OrchestratorTestSuite) TestGiveUpAtReserveSentReleasesStock() {
	id := s.stuckBooking(booking.StepReserveSent, 25*time.Hour)

	stuck, giveUp := s.cutoffs()
	s.Require().NoError(s.orch.AdvanceStuck(context.Background(), id, stuck, giveUp))

	b, err := s.repo.Get(context.Background(), nil, id)
	s.Require().NoError(err)
	s.Equal(booking.StatusFailed, b.Status)
	s.Require().Len(s.inventory.releaseCalls, 1)
}

func (s *OrchestratorTestSuite) TestGiveUpAtPaymentSentNeverReleases() {
	id := s.stuckBooking(booking.StepPaymentSent, 25*time.Hour)

	stuck, giveUp := s.cutoffs()
	s.Require().NoError(s.orch.AdvanceStuck(context.Background(), id, stuck, giveUp))

	b, err := s.repo.Get(context.Background(), nil, id)
	s.Require().NoError(err)
	s.Equal(booking.StatusFailed, b.Status)
	// The charge may have succeeded; holds stay for operator reconciliation.
	s.Empty(s.inventory.releaseCalls)
	s.Empty(s.payments.chargeCalls)
}

func (s *OrchestratorTestSuite) TestReleaseFailureDoesNotChangeOutcome() {
	s.inventory.queueReserve(booking.ReserveResponse{TotalPriceCents: 40000, Status: "RESERVED"}, nil)
	s.inventory.releaseErr = errs.New("inventory down")
	s.payments.queueCharge(booking.ChargeResponse{PaymentID: 7, Status: "FAILED", Message: "declined"}, nil)

	result, err := s.svc.Create(context.Background(), s.createCmd())
	s.Require().NoError(err)

	s.Equal(booking.OutcomeBusinessFailure, result.Outcome)
	s.Equal(booking.StatusFailed, result.Booking.Status)
}

func (s *OrchestratorTestSuite) TestCreateRejectsInvalidRange() {
	cmd := s.createCmd()
	cmd.CheckOutDate = cmd.CheckInDate

	_, err := s.svc.Create(context.Background(), cmd)
	code, ok := fault.BusinessCode(err)
	s.Require().True(ok)
	s.Equal(fault.CodeInvalidRequest, code)
	s.Empty(s.inventory.reserveCalls)
}

func TestOrchestratorTestSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}
