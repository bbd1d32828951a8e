package expiry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExpirer struct {
	calls atomic.Int32
	n     int
	err   error
}

func (e *countingExpirer) ExpireDue(context.Context) (int, error) {
	e.calls.Add(1)
	return e.n, e.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweepOnce_ReportsCount(t *testing.T) {
	w := NewWorker(&countingExpirer{n: 3}, time.Hour, discard())
	assert.Equal(t, 3, w.SweepOnce(context.Background()))
}

func TestSweepOnce_ErrorIsLoggedNotFatal(t *testing.T) {
	w := NewWorker(&countingExpirer{err: errors.New("db down")}, time.Hour, discard())
	assert.Zero(t, w.SweepOnce(context.Background()))
}

func TestRun_SweepsImmediatelyAndStopsOnCancel(t *testing.T) {
	expirer := &countingExpirer{}
	w := NewWorker(expirer, 10*time.Millisecond, discard())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return expirer.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
