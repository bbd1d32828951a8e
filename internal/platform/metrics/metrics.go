package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide HTTP metrics. Module-specific counters live in
// each module's metrics package.
type Metrics struct {
	EndpointLatency *prometheus.HistogramVec
	FarmersCreated  prometheus.Counter
}

// New creates and registers the shared metrics.
func New() *Metrics {
	return &Metrics{
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "farmshield_http_request_duration_seconds",
			Help:    "HTTP request latency by endpoint",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		FarmersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_farmers_registered_total",
			Help: "Total number of farmers registered",
		}),
	}
}

func (m *Metrics) ObserveEndpointLatency(endpoint string, duration time.Duration) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *Metrics) IncrementFarmersCreated() {
	m.FarmersCreated.Inc()
}
