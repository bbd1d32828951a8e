package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks logins, sessions and registrations.
type Metrics struct {
	LoginsTotal         *prometheus.CounterVec
	AuthFailures        *prometheus.CounterVec
	FarmersRegistered   prometheus.Counter
	SessionsRevoked     prometheus.Counter
	RefreshReplays      prometheus.Counter
	TokenIssueLatencyMs prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		LoginsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "farmshield_logins_total",
			Help: "Successful logins by role",
		}, []string{"role"}),
		AuthFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "farmshield_auth_failures_total",
			Help: "Rejected login and refresh attempts by reason",
		}, []string{"reason"}),
		FarmersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_farmers_registered_total",
			Help: "Farmers created after code verification",
		}),
		SessionsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_sessions_revoked_total",
			Help: "Sessions ended by logout",
		}),
		RefreshReplays: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_refresh_replays_total",
			Help: "Refresh attempts with a token that was already rotated",
		}),
		TokenIssueLatencyMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "farmshield_token_issue_duration_ms",
			Help:    "Time to mint and persist a session in milliseconds",
			Buckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 250},
		}),
	}
}

func (m *Metrics) IncrementLogin(role string) {
	m.LoginsTotal.WithLabelValues(role).Inc()
}

func (m *Metrics) IncrementAuthFailure(reason string) {
	m.AuthFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementRegistered() {
	m.FarmersRegistered.Inc()
}

func (m *Metrics) IncrementSessionsRevoked() {
	m.SessionsRevoked.Inc()
}

func (m *Metrics) IncrementRefreshReplay() {
	m.RefreshReplays.Inc()
}

func (m *Metrics) ObserveTokenIssue(durationMs float64) {
	m.TokenIssueLatencyMs.Observe(durationMs)
}
