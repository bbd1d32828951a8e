package models

import (
	"net/http"
	"strings"
	"time"
)

// EndpointClass categorizes endpoints for differentiated rate limiting.
type EndpointClass string

const (
	// ClassAuth covers OTP issue/verify, registration and official login.
	ClassAuth EndpointClass = "auth"
	// ClassUpload covers multipart claim filings and profile photos.
	ClassUpload EndpointClass = "upload"
	ClassWrite  EndpointClass = "write"
	ClassRead   EndpointClass = "read"
)

// Classify maps a request to its class by path and method.
func Classify(method, path string) EndpointClass {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	switch {
	case strings.HasPrefix(path, "/auth/"):
		return ClassAuth
	case method == http.MethodPost && (path == "/claims" || path == "/farmers/me/photo"):
		return ClassUpload
	case method == http.MethodGet || method == http.MethodHead:
		return ClassRead
	default:
		return ClassWrite
	}
}

// Limit is the number of requests allowed per sliding window.
type Limit struct {
	Requests int
	Window   time.Duration
}

type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is in whole seconds and only set when the request is denied.
	RetryAfter int
}

// Key builds the bucket key for one client and class.
func Key(class EndpointClass, clientIP string) string {
	return "rl:" + string(class) + ":" + clientIP
}
