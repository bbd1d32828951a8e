// Package worker relays committed outbox rows to the lifecycle topic.
package worker

import (
	"context"
	"log/slog"
	"time"

	"farmshield/pkg/platform/audit/store/postgres"
)

// BatchRelayer is satisfied by the postgres outbox store.
type BatchRelayer interface {
	RelayBatch(ctx context.Context, limit int, publish func(context.Context, []postgres.OutboxEntry) error) (int, error)
}

// Producer publishes keyed records to the lifecycle topic.
type Producer interface {
	Publish(ctx context.Context, key, value []byte) error
}

type Worker struct {
	outbox   BatchRelayer
	producer Producer
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

func NewWorker(outbox BatchRelayer, producer Producer, interval time.Duration, batch int, logger *slog.Logger) *Worker {
	return &Worker{outbox: outbox, producer: producer, interval: interval, batch: batch, logger: logger}
}

// Run polls until ctx is cancelled. A full batch triggers an immediate
// follow-up pass so a backlog drains without waiting for the ticker.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		n, err := w.RelayOnce(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.WarnContext(ctx, "outbox relay failed", "error", err)
		}
		if n == w.batch {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes at most one batch. Records are keyed by aggregate so a
// farmer's events stay ordered within a partition.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	return w.outbox.RelayBatch(ctx, w.batch, func(ctx context.Context, entries []postgres.OutboxEntry) error {
		for _, e := range entries {
			if err := w.producer.Publish(ctx, []byte(e.AggregateID), e.Payload); err != nil {
				return err
			}
		}
		return nil
	})
}
