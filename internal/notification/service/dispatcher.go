package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"farmshield/internal/notification/metrics"
	"farmshield/internal/notification/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/requestcontext"
)

// Deliverer persists and sends one notification.
type Deliverer interface {
	Deliver(ctx context.Context, n *models.Notification) error
}

type job struct {
	ctx context.Context
	n   *models.Notification
}

// Dispatcher hands notifications to a pool of workers so state transitions
// never wait on the inbox or the SMS gateway. When the queue is full or the
// dispatcher is closed the notification is delivered on the caller's
// goroutine instead of being dropped.
type Dispatcher struct {
	deliverer Deliverer
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu     sync.RWMutex
	closed bool
	queue  chan job
	wg     sync.WaitGroup
	once   sync.Once
}

type DispatcherOption func(*Dispatcher)

func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func NewDispatcher(deliverer Deliverer, queueSize, workers int, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		deliverer: deliverer,
		queue:     make(chan job, max(queueSize, 1)),
	}
	for _, opt := range opts {
		opt(d)
	}
	for range max(workers, 1) {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Notify validates and enqueues a notification. Only validation errors are
// returned; delivery failures are logged by the worker.
func (d *Dispatcher) Notify(ctx context.Context, farmerID id.FarmerID, title, message string, category id.NotificationCategory) error {
	n, err := models.NewNotification(id.NotificationID(uuid.New()), farmerID, title, message, category, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	// Request values stay for logging; the request's cancellation does not.
	j := job{ctx: context.WithoutCancel(ctx), n: n}

	d.mu.RLock()
	if !d.closed {
		select {
		case d.queue <- j:
			d.setDepth()
			d.mu.RUnlock()
			return nil
		default:
		}
	}
	d.mu.RUnlock()

	if d.metrics != nil {
		d.metrics.IncrementInline()
	}
	d.deliver(j)
	return nil
}

// Close stops accepting queued work and waits for the workers to drain.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		d.setDepth()
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	if err := d.deliverer.Deliver(j.ctx, j.n); err != nil && d.logger != nil {
		d.logger.ErrorContext(j.ctx, "notification delivery failed",
			"error", err,
			"farmer_id", j.n.FarmerID.String(),
			"notification_id", j.n.ID.String(),
			"category", string(j.n.Category),
			"title", j.n.Title,
			"request_id", requestcontext.RequestID(j.ctx),
		)
	}
}

func (d *Dispatcher) setDepth() {
	if d.metrics != nil {
		d.metrics.SetQueueDepth(len(d.queue))
	}
}
