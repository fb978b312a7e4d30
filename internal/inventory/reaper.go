package inventory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"openbooking/internal/pkg/clock"
	"openbooking/internal/platform/db"
)

const reaperBatchSize = 500

// Reaper periodically credits back the stock pinned by expired holds and
// deletes them, bounding how long a crashed saga can keep rooms off the
// market. It makes no RPCs; the database serializes it against confirm and
// release at the row level.
type Reaper struct {
	runner   db.TxRunner
	repo     Repository
	clk      clock.Clock
	interval time.Duration
	log      *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewReaper(runner db.TxRunner, repo Repository, clk clock.Clock, interval time.Duration, log *slog.Logger) *Reaper {
	return &Reaper{
		runner:   runner,
		repo:     repo,
		clk:      clk,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

func (r *Reaper) Start() {
	r.wg.Add(1)
	go r.loop()
	r.log.Info("hold reaper started", "interval", r.interval)
}

func (r *Reaper) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.log.Info("hold reaper stopped")
}

func (r *Reaper) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runOnce()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runOnce()
		}
	}
}

func (r *Reaper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reaped, err := r.ReapExpired(ctx)
	if err != nil {
		r.log.Error("hold reaper tick failed", "error", err.Error())
		return
	}
	if reaped > 0 {
		r.log.Info("reaped expired holds", "count", reaped)
	}
}

// ReapExpired credits and deletes every hold past its expiry, in one
// transaction, and returns how many were reaped.
func (r *Reaper) ReapExpired(ctx context.Context) (int, error) {
	var reaped int
	err := r.runner.InTx(ctx, func(ctx context.Context, q db.DBTX) error {
		holds, err := r.repo.ExpiredHolds(ctx, q, r.clk.Now(), reaperBatchSize)
		if err != nil {
			return err
		}
		for _, h := range holds {
			if err := r.repo.Credit(ctx, q, h.RoomID, h.Date, h.Quantity); err != nil {
				return err
			}
			if err := r.repo.DeleteHold(ctx, q, h.ID); err != nil {
				return err
			}
		}
		reaped = len(holds)
		return nil
	})
	return reaped, err
}
