package booking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"openbooking/internal/pkg/clock"
	"openbooking/internal/pkg/config"
	"openbooking/internal/platform/db"
)

const recoveryBatchSize = 100

// RecoveryWorker periodically resumes sagas whose step has not moved past
// the stuck threshold, and applies the give-up policy to ones past the
// give-up threshold. It assumes a single instance; the per-booking row lock
// keeps a concurrent request-path retry safe regardless.
type RecoveryWorker struct {
	runner       db.TxRunner
	repo         Repository
	orchestrator *Orchestrator
	clk          clock.Clock
	cfg          config.BookingConfig
	log          *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewRecoveryWorker(
	runner db.TxRunner,
	repo Repository,
	orchestrator *Orchestrator,
	clk clock.Clock,
	cfg config.BookingConfig,
	log *slog.Logger,
) *RecoveryWorker {
	return &RecoveryWorker{
		runner:       runner,
		repo:         repo,
		orchestrator: orchestrator,
		clk:          clk,
		cfg:          cfg,
		log:          log,
		stopCh:       make(chan struct{}),
	}
}

func (w *RecoveryWorker) Start() {
	w.wg.Add(1)
	go w.loop()
	w.log.Info("recovery worker started",
		"interval", w.cfg.RecoveryInterval(),
		"stuck_threshold", w.cfg.StuckThreshold(),
		"give_up_threshold", w.cfg.GiveUpThreshold())
}

func (w *RecoveryWorker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("recovery worker stopped")
}

func (w *RecoveryWorker) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.RecoveryInterval())
	defer ticker.Stop()

	w.runOnce()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.runOnce()
		}
	}
}

func (w *RecoveryWorker) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := w.Tick(ctx); err != nil {
		w.log.Error("recovery tick failed", "error", err.Error())
	}
}

// Tick scans for stuck bookings and advances each one independently; a
// failure on one booking never blocks the rest.
func (w *RecoveryWorker) Tick(ctx context.Context) error {
	now := w.clk.Now()
	stuckCutoff := now.Add(-w.cfg.StuckThreshold())
	giveUpCutoff := now.Add(-w.cfg.GiveUpThreshold())

	var ids []int64
	err := w.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		var err error
		ids, err = w.repo.FindStuck(ctx, q, stuckCutoff, recoveryBatchSize)
		return err
	})
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	w.log.Info("recovering stuck bookings", "count", len(ids))
	for _, id := range ids {
		if err := w.orchestrator.AdvanceStuck(ctx, id, stuckCutoff, giveUpCutoff); err != nil {
			w.log.Error("failed to advance stuck booking", "booking_id", id, "error", err.Error())
		}
	}
	return nil
}
