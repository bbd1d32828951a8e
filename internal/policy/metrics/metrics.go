package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks policy lifecycle transitions.
type Metrics struct {
	Transitions      *prometheus.CounterVec
	NumberCollisions prometheus.Counter
	PremiumQuoted    prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "farmshield_policy_transitions_total",
			Help: "Policy status transitions by target status",
		}, []string{"status"}),
		NumberCollisions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_policy_number_collisions_total",
			Help: "Generated policy numbers that were already taken",
		}),
		PremiumQuoted: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "farmshield_policy_premium_rupees",
			Help:    "Premium of newly applied policies",
			Buckets: prometheus.ExponentialBuckets(100, 2, 12),
		}),
	}
}

func (m *Metrics) IncrementTransition(status string) {
	m.Transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) AddTransitions(status string, n int) {
	m.Transitions.WithLabelValues(status).Add(float64(n))
}

func (m *Metrics) IncrementNumberCollision() {
	m.NumberCollisions.Inc()
}

func (m *Metrics) ObservePremium(rupees float64) {
	m.PremiumQuoted.Observe(rupees)
}
