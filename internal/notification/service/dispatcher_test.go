package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmshield/internal/notification/models"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/requestcontext"
)

type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []string
	err       error

	blockFirst bool
	started    chan struct{}
	release    chan struct{}
	once       sync.Once
}

func (f *fakeDeliverer) Deliver(_ context.Context, n *models.Notification) error {
	if f.blockFirst {
		first := false
		f.once.Do(func() { first = true })
		if first {
			close(f.started)
			<-f.release
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, n.Title)
	return f.err
}

func (f *fakeDeliverer) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.delivered...)
}

func TestDispatcher_DeliversEverythingBeforeClose(t *testing.T) {
	f := &fakeDeliverer{}
	d := NewDispatcher(f, 8, 3)
	farmer := id.FarmerID(uuid.New())
	for range 20 {
		require.NoError(t, d.Notify(context.Background(), farmer, "t", "m", id.NotificationPolicy))
	}
	d.Close()
	assert.Len(t, f.titles(), 20)
}

func TestDispatcher_FullQueueDeliversInline(t *testing.T) {
	f := &fakeDeliverer{blockFirst: true, started: make(chan struct{}), release: make(chan struct{})}
	d := NewDispatcher(f, 1, 1)
	farmer := id.FarmerID(uuid.New())

	require.NoError(t, d.Notify(context.Background(), farmer, "first", "m", id.NotificationClaim))
	<-f.started
	require.NoError(t, d.Notify(context.Background(), farmer, "queued", "m", id.NotificationClaim))
	require.NoError(t, d.Notify(context.Background(), farmer, "inline", "m", id.NotificationClaim))

	assert.Equal(t, []string{"inline"}, f.titles())
	close(f.release)
	d.Close()
	assert.ElementsMatch(t, []string{"first", "queued", "inline"}, f.titles())
}

func TestDispatcher_LogsFailureWithCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	f := &fakeDeliverer{err: errors.New("db down")}
	d := NewDispatcher(f, 4, 1, WithDispatcherLogger(logger))

	farmer := id.FarmerID(uuid.New())
	ctx, cancel := context.WithCancel(requestcontext.WithRequestID(context.Background(), "req-42"))
	require.NoError(t, d.Notify(ctx, farmer, "Claim Approved! ✅", "m", id.NotificationClaim))
	cancel()
	d.Close()

	out := buf.String()
	assert.Contains(t, out, "notification delivery failed")
	assert.Contains(t, out, farmer.String())
	assert.Contains(t, out, `"category":"claim"`)
	assert.Contains(t, out, `"request_id":"req-42"`)
}

func TestDispatcher_RejectsInvalidNotification(t *testing.T) {
	d := NewDispatcher(&fakeDeliverer{}, 1, 1)
	defer d.Close()
	err := d.Notify(context.Background(), id.FarmerID(uuid.New()), "", "m", id.NotificationClaim)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
