package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks notification delivery.
type Metrics struct {
	Delivered        *prometheus.CounterVec
	Failed           *prometheus.CounterVec
	SMSFailed        prometheus.Counter
	InlineDeliveries prometheus.Counter
	QueueDepth       prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Delivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "farmshield_notifications_delivered_total",
			Help: "Notifications stored in a farmer's inbox",
		}, []string{"category"}),
		Failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "farmshield_notifications_failed_total",
			Help: "Notifications that could not be stored",
		}, []string{"category"}),
		SMSFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_notification_sms_failed_total",
			Help: "Text message copies the gateway rejected",
		}),
		InlineDeliveries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_notifications_inline_total",
			Help: "Notifications delivered on the caller's goroutine because the queue was full or closed",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "farmshield_notification_queue_depth",
			Help: "Notifications waiting for a dispatcher worker",
		}),
	}
}

func (m *Metrics) IncrementDelivered(category string) {
	m.Delivered.WithLabelValues(category).Inc()
}

func (m *Metrics) IncrementFailed(category string) {
	m.Failed.WithLabelValues(category).Inc()
}

func (m *Metrics) IncrementSMSFailed() {
	m.SMSFailed.Inc()
}

func (m *Metrics) IncrementInline() {
	m.InlineDeliveries.Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}
