package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	request "farmshield/pkg/platform/middleware/request"
	"farmshield/pkg/requestcontext"
	"farmshield/pkg/testutil"
)

type moduleFunc func(r chi.Router)

func (f moduleFunc) Register(r chi.Router) { f(r) }

type latencyRecorder struct {
	endpoints []string
}

func (l *latencyRecorder) ObserveEndpointLatency(endpoint string, _ time.Duration) {
	l.endpoints = append(l.endpoints, endpoint)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealth(t *testing.T) {
	router := NewRouter(Config{Logger: quietLogger()})
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "status", "ok")
	assert.NotEmpty(t, rr.Header().Get(request.HeaderRequestID))
}

func TestReady_ReportsFailingDependency(t *testing.T) {
	router := NewRouter(Config{
		Logger: quietLogger(),
		Checks: map[string]Check{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		},
	})
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/ready"))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)

	body := testutil.UnmarshalResponse[struct {
		Checks map[string]string `json:"checks"`
	}](t, rr)
	assert.Equal(t, map[string]string{"postgres": "ok", "redis": "unavailable"}, body.Checks)
}

func TestReady_NoChecks(t *testing.T) {
	router := NewRouter(Config{Logger: quietLogger()})
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/ready"))
	testutil.AssertStatusOK(t, rr)
}

func TestModulesShareRequestContext(t *testing.T) {
	var gotRequestID string
	var gotTime time.Time
	module := moduleFunc(func(r chi.Router) {
		r.Get("/probe", func(w http.ResponseWriter, r *http.Request) {
			gotRequestID = requestcontext.RequestID(r.Context())
			gotTime = requestcontext.Now(r.Context())
			w.WriteHeader(http.StatusNoContent)
		})
	})
	latency := &latencyRecorder{}
	router := NewRouter(Config{Logger: quietLogger(), Latency: latency, RequestTimeout: time.Second}, module)

	req := testutil.NewRequest(t, http.MethodGet, "/probe")
	inbound := "6f1c0a1e-8a57-4bde-9a3c-0d5f2bb2d7a4"
	req.Header.Set(request.HeaderRequestID, inbound)
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(t, rr, http.StatusNoContent)
	assert.Equal(t, inbound, gotRequestID)
	assert.False(t, gotTime.IsZero())
	require.Len(t, latency.endpoints, 1)
	assert.Equal(t, "GET /probe", latency.endpoints[0])
}

func TestLatencyUsesRoutePattern(t *testing.T) {
	module := moduleFunc(func(r chi.Router) {
		r.Get("/claims/{claimID}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	latency := &latencyRecorder{}
	router := NewRouter(Config{Logger: quietLogger(), Latency: latency}, module)

	testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/claims/4a3b"))
	require.Len(t, latency.endpoints, 1)
	assert.Equal(t, "GET /claims/{claimID}", latency.endpoints[0])
}

func TestPanicIsRecovered(t *testing.T) {
	module := moduleFunc(func(r chi.Router) {
		r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	})
	router := NewRouter(Config{Logger: quietLogger()}, module)
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/boom"))
	testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")
}

func TestMetricsEndpoint(t *testing.T) {
	router := NewRouter(Config{Logger: quietLogger()})
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestRateLimitGuardsModulesOnly(t *testing.T) {
	testutil.Given(t, "a router whose limiter rejects everything", func(t *testing.T) {
		module := moduleFunc(func(r chi.Router) {
			r.Get("/policies", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		})
		deny := func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			})
		}
		router := NewRouter(Config{Logger: quietLogger(), RateLimit: deny}, module)

		testutil.When(t, "a module route is called", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/policies"))
			testutil.Then(t, "the limiter answers", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
			})
		})

		testutil.When(t, "a probe is called", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))
			testutil.Then(t, "it bypasses the limiter", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
			})
		})
	})
}
