package assessor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"farmshield/internal/claim/metrics"
	"farmshield/internal/claim/models"
	"farmshield/pkg/platform/circuit"
	"farmshield/pkg/requestcontext"
)

// Predictor is a damage model reachable over the network.
type Predictor interface {
	Predict(ctx context.Context, imageRefs []string) (*models.Prediction, error)
}

// Assessor bounds each call to the primary predictor by a timeout and a
// circuit breaker. It always returns a prediction: failures, timeouts and an
// open circuit all take the fallback estimate.
type Assessor struct {
	primary  Predictor
	fallback *Fallback
	breaker  *circuit.Breaker
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Assessor)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Assessor) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assessor) {
		a.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(a *Assessor) {
		a.breaker = b
	}
}

func New(primary Predictor, fallback *Fallback, timeout time.Duration, opts ...Option) *Assessor {
	a := &Assessor{
		primary:  primary,
		fallback: fallback,
		timeout:  timeout,
		breaker:  circuit.New("assessor"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

const (
	resultOK          = "ok"
	resultError       = "error"
	resultTimeout     = "timeout"
	resultCircuitOpen = "circuit_open"
)

func (a *Assessor) Predict(ctx context.Context, imageRefs []string) (*models.Prediction, error) {
	if a.primary == nil || !a.breaker.Allow() {
		return a.useFallback(ctx, imageRefs, resultCircuitOpen, nil), nil
	}

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	start := time.Now()
	prediction, err := a.primary.Predict(callCtx, imageRefs)
	if a.metrics != nil {
		a.metrics.ObserveAssessorLatency(time.Since(start))
	}
	if err == nil {
		a.breaker.RecordSuccess()
		if a.metrics != nil {
			a.metrics.IncrementAssessorCall(resultOK)
		}
		return prediction, nil
	}

	_, change := a.breaker.RecordFailure()
	if change.Opened && a.logger != nil {
		a.logger.WarnContext(ctx, "assessor circuit opened", "breaker", a.breaker.Name())
	}
	result := resultError
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		result = resultTimeout
	}
	return a.useFallback(ctx, imageRefs, result, err), nil
}

func (a *Assessor) useFallback(ctx context.Context, imageRefs []string, reason string, cause error) *models.Prediction {
	if a.metrics != nil {
		a.metrics.IncrementAssessorCall(reason)
	}
	if a.logger != nil {
		attrs := []any{"reason", reason, "images", len(imageRefs), "request_id", requestcontext.RequestID(ctx)}
		if cause != nil {
			attrs = append(attrs, "error", cause)
		}
		a.logger.WarnContext(ctx, "assessor unavailable, using fallback estimate", attrs...)
	}
	p := a.fallback.Predict(imageRefs)
	p.Details["fallback_reason"] = reason
	return p
}
