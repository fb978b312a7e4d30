package booking

import (
	"context"

	"openbooking/internal/pkg/dates"
	"openbooking/internal/pkg/fault"
	"openbooking/internal/platform/db"
)

type Service struct {
	runner       db.TxRunner
	repo         Repository
	orchestrator *Orchestrator
}

func NewService(runner db.TxRunner, repo Repository, orchestrator *Orchestrator) *Service {
	return &Service{runner: runner, repo: repo, orchestrator: orchestrator}
}

// Create validates the request and runs the saga to a first-class outcome.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (Result, error) {
	if cmd.Quantity <= 0 {
		return Result{}, fault.Business(fault.CodeInvalidRequest, "quantity must be positive")
	}
	if len(dates.Nights(cmd.CheckInDate, cmd.CheckOutDate)) == 0 {
		return Result{}, fault.Business(fault.CodeInvalidRequest, "check_out_date must be after check_in_date")
	}
	return s.orchestrator.Run(ctx, cmd)
}

func (s *Service) Get(ctx context.Context, id int64) (Booking, error) {
	var b Booking
	err := s.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		var err error
		b, err = s.repo.Get(ctx, q, id)
		return err
	})
	return b, err
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Booking, error) {
	var out []Booking
	err := s.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		var err error
		out, err = s.repo.ListByUser(ctx, q, userID)
		return err
	})
	return out, err
}
