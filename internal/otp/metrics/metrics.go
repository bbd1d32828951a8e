package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks one-time code issuance and verification outcomes.
type Metrics struct {
	CodesIssued      prometheus.Counter
	IssueThrottled   prometheus.Counter
	VerifyOutcomes   *prometheus.CounterVec
	CodesUndelivered prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		CodesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_otp_issued_total",
			Help: "Total number of one-time codes issued",
		}),
		IssueThrottled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_otp_issue_throttled_total",
			Help: "Issue requests rejected by the per-phone throttle",
		}),
		VerifyOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "farmshield_otp_verify_total",
			Help: "Verification attempts by outcome",
		}, []string{"outcome"}),
		CodesUndelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_otp_undelivered_total",
			Help: "Codes the sender reported as not delivered",
		}),
	}
}

func (m *Metrics) IncrementIssued() {
	m.CodesIssued.Inc()
}

func (m *Metrics) IncrementThrottled() {
	m.IssueThrottled.Inc()
}

func (m *Metrics) IncrementUndelivered() {
	m.CodesUndelivered.Inc()
}

// ObserveVerify records one of: ok, not_found, expired, mismatch, already_used.
func (m *Metrics) ObserveVerify(outcome string) {
	m.VerifyOutcomes.WithLabelValues(outcome).Inc()
}
