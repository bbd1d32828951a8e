// Package requesttime pins a single "now" per request so that every timestamp
// written while serving it (OTP expiry, policy validity, claim filing) agrees.
package requesttime

import (
	"net/http"
	"time"

	"farmshield/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
