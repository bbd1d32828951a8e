// Package expiry runs the scheduled sweep that closes policies whose
// validity window has ended.
package expiry

import (
	"context"
	"log/slog"
	"time"
)

type Expirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

type Worker struct {
	expirer  Expirer
	interval time.Duration
	logger   *slog.Logger
}

func NewWorker(expirer Expirer, interval time.Duration, logger *slog.Logger) *Worker {
	return &Worker{expirer: expirer, interval: interval, logger: logger}
}

// Run sweeps once immediately, then every interval until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.SweepOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Worker) SweepOnce(ctx context.Context) int {
	n, err := w.expirer.ExpireDue(ctx)
	switch {
	case err != nil && ctx.Err() == nil:
		w.logger.WarnContext(ctx, "policy expiry sweep failed", "error", err)
	case n > 0:
		w.logger.InfoContext(ctx, "expired policies", "count", n)
	}
	return n
}
