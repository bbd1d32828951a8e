package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks claim filing, adjudication and the damage assessor.
type Metrics struct {
	Filed             prometheus.Counter
	Adjudicated       *prometheus.CounterVec
	Rejections        *prometheus.CounterVec
	GeofenceOutside   prometheus.Counter
	AssessorCalls     *prometheus.CounterVec
	AssessorLatency   prometheus.Histogram
	PipelineDuration  prometheus.Histogram
	PayoutAmount      prometheus.Histogram
	ImageUploadErrors prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Filed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_claims_filed_total",
			Help: "Claims that reserved their policy",
		}),
		Adjudicated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "farmshield_claims_adjudicated_total",
			Help: "Claims decided, by outcome",
		}, []string{"outcome"}),
		Rejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "farmshield_claim_filing_rejections_total",
			Help: "Claim submissions refused before adjudication, by pipeline step",
		}, []string{"step"}),
		GeofenceOutside: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_claim_geofence_outside_total",
			Help: "Claims filed outside the land tolerance",
		}),
		AssessorCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "farmshield_assessor_calls_total",
			Help: "Damage assessments, by result (ok, error, timeout, circuit_open)",
		}, []string{"result"}),
		AssessorLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "farmshield_assessor_latency_seconds",
			Help:    "Latency of calls to the damage assessor",
			Buckets: prometheus.DefBuckets,
		}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "farmshield_claim_pipeline_seconds",
			Help:    "End-to-end claim filing duration",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		PayoutAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "farmshield_claim_payout_rupees",
			Help:    "Approved payout amounts",
			Buckets: prometheus.ExponentialBuckets(1000, 2, 10),
		}),
		ImageUploadErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "farmshield_claim_image_upload_errors_total",
			Help: "Evidence uploads that failed",
		}),
	}
}

func (m *Metrics) IncrementFiled() {
	m.Filed.Inc()
}

func (m *Metrics) IncrementAdjudicated(outcome string) {
	m.Adjudicated.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementRejection(step string) {
	m.Rejections.WithLabelValues(step).Inc()
}

func (m *Metrics) IncrementGeofenceOutside() {
	m.GeofenceOutside.Inc()
}

func (m *Metrics) IncrementAssessorCall(result string) {
	m.AssessorCalls.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveAssessorLatency(d time.Duration) {
	m.AssessorLatency.Observe(d.Seconds())
}

func (m *Metrics) ObservePipeline(d time.Duration) {
	m.PipelineDuration.Observe(d.Seconds())
}

func (m *Metrics) ObservePayout(amount float64) {
	m.PayoutAmount.Observe(amount)
}

func (m *Metrics) IncrementUploadError() {
	m.ImageUploadErrors.Inc()
}
