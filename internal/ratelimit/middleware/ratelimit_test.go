package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmshield/internal/ratelimit/models"
	"farmshield/internal/ratelimit/store/bucket"
	"farmshield/pkg/requestcontext"
	"farmshield/pkg/testutil"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, models.Limit) (*models.RateLimitResult, error) {
	return nil, errors.New("redis: connection refused")
}

var noContent = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fromIP(t *testing.T, method, path, ip string) *http.Request {
	req := testutil.NewRequest(t, method, path)
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, "test"))
}

func TestRateLimit_AuthClassIsThrottledPerIP(t *testing.T) {
	mw := New(bucket.NewInMemoryBucketStore(), map[models.EndpointClass]models.Limit{
		models.ClassAuth: {Requests: 2, Window: time.Minute},
	}, quietLogger())
	h := mw.RateLimit(noContent)

	for range 2 {
		rr := testutil.DoRequest(h, fromIP(t, http.MethodPost, "/auth/otp/send", "10.0.0.1"))
		testutil.AssertStatus(t, rr, http.StatusNoContent)
	}

	rr := testutil.DoRequest(h, fromIP(t, http.MethodPost, "/auth/otp/send", "10.0.0.1"))
	testutil.AssertStatusAndError(t, rr, http.StatusTooManyRequests, "rate_limited")
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	rr = testutil.DoRequest(h, fromIP(t, http.MethodPost, "/auth/otp/send", "10.0.0.2"))
	testutil.AssertStatus(t, rr, http.StatusNoContent)
}

func TestRateLimit_UnlimitedClassPassesThrough(t *testing.T) {
	mw := New(bucket.NewInMemoryBucketStore(), map[models.EndpointClass]models.Limit{
		models.ClassAuth: {Requests: 1, Window: time.Minute},
	}, quietLogger())
	h := mw.RateLimit(noContent)

	for range 5 {
		rr := testutil.DoRequest(h, fromIP(t, http.MethodGet, "/policies", "10.0.0.1"))
		testutil.AssertStatus(t, rr, http.StatusNoContent)
		assert.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimit_StoreFailureFailsOpen(t *testing.T) {
	mw := New(failingStore{}, map[models.EndpointClass]models.Limit{
		models.ClassWrite: {Requests: 1, Window: time.Minute},
	}, quietLogger())
	rr := testutil.DoRequest(mw.RateLimit(noContent), fromIP(t, http.MethodPost, "/policies/apply", "10.0.0.1"))
	testutil.AssertStatus(t, rr, http.StatusNoContent)
}

func TestRateLimit_Disabled(t *testing.T) {
	mw := New(failingStore{}, map[models.EndpointClass]models.Limit{
		models.ClassWrite: {Requests: 1, Window: time.Minute},
	}, quietLogger(), WithDisabled(true))
	rr := testutil.DoRequest(mw.RateLimit(noContent), fromIP(t, http.MethodPost, "/policies/apply", "10.0.0.1"))
	testutil.AssertStatus(t, rr, http.StatusNoContent)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		method, path string
		want         models.EndpointClass
	}{
		{http.MethodPost, "/auth/otp/verify", models.ClassAuth},
		{http.MethodPost, "/claims", models.ClassUpload},
		{http.MethodPost, "/claims/", models.ClassUpload},
		{http.MethodPost, "/farmers/me/photo", models.ClassUpload},
		{http.MethodGet, "/claims", models.ClassRead},
		{http.MethodPut, "/farmers/me", models.ClassWrite},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, models.Classify(tc.method, tc.path), "%s %s", tc.method, tc.path)
	}
}
