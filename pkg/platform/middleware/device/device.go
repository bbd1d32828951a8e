// Package device labels the calling device from its User-Agent so sessions can
// be listed as "Chrome on Android" rather than raw header strings.
package device

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"farmshield/pkg/requestcontext"
)

// ParseUserAgent returns "<browser> on <os>", or "Unknown Device" for an empty header.
func ParseUserAgent(header string) string {
	if strings.TrimSpace(header) == "" {
		return "Unknown Device"
	}
	ua := useragent.New(header)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	return strings.Join(strings.Fields(browser+" on "+os), " ")
}

// Middleware stores the device label in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithDevice(r.Context(), ParseUserAgent(r.Header.Get("User-Agent")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
