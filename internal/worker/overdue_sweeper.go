package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper flags loans whose due date has passed.
type Sweeper interface {
	SweepOverdue(ctx context.Context) (int64, error)
}

// OverdueSweeper runs the overdue sweep on a fixed interval.
type OverdueSweeper struct {
	loans    Sweeper
	logger   *zap.Logger
	interval time.Duration
}

func NewOverdueSweeper(loans Sweeper, logger *zap.Logger, interval time.Duration) *OverdueSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &OverdueSweeper{loans: loans, logger: logger, interval: interval}
}

// Start sweeps once immediately, then on every tick until ctx is done.
func (w *OverdueSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("overdue sweeper started", zap.Duration("interval", w.interval))
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("overdue sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *OverdueSweeper) sweep(ctx context.Context) {
	n, err := w.loans.SweepOverdue(ctx)
	if err != nil {
		w.logger.Error("overdue sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Info("loans marked overdue", zap.Int64("count", n))
	}
}
