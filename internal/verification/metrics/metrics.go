package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions       *prometheus.CounterVec
	DecideConflicts prometheus.Counter
	DecisionLatency prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "farmshield_verification_decisions_total",
			Help: "Verification decisions by outcome",
		}, []string{"outcome"}),
		DecideConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_verification_decide_conflicts_total",
			Help: "Decisions rejected because the verification was already decided or the sensor was taken",
		}),
		DecisionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "farmshield_verification_pending_hours",
			Help:    "Hours a verification waited before it was decided",
			Buckets: []float64{1, 6, 24, 72, 168, 336, 720},
		}),
	}
}

func (m *Metrics) IncrementDecision(outcome string) {
	m.Decisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementConflict() {
	m.DecideConflicts.Inc()
}

func (m *Metrics) ObserveWaitHours(hours float64) {
	m.DecisionLatency.Observe(hours)
}
