package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected   *prometheus.CounterVec
	FailedOpen prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "farmshield_ratelimit_rejected_total",
			Help: "Requests rejected by the per-client rate limiter",
		}, []string{"class"}),
		FailedOpen: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_ratelimit_fail_open_total",
			Help: "Requests let through because the limiter store was unavailable",
		}),
	}
}

func (m *Metrics) IncrementRejected(class string) {
	m.Rejected.WithLabelValues(class).Inc()
}

func (m *Metrics) IncrementFailedOpen() {
	m.FailedOpen.Inc()
}
