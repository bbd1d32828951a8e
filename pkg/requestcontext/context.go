// Package requestcontext provides HTTP-independent accessors for request-scoped values.
//
// Middleware sets the authenticated principal, request ID and request time;
// services read them without importing net/http.
//
//	principal := requestcontext.Principal(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithPrincipal(ctx, requestcontext.Caller{Role: requestcontext.RoleFarmer, ...})
package requestcontext

import (
	"context"
	"time"

	id "farmshield/pkg/domain"

	"github.com/google/uuid"
)

// Role distinguishes farmers from government officials.
type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleOfficial Role = "official"
)

// Caller is the authenticated principal resolved from a session token.
type Caller struct {
	SubjectID uuid.UUID
	SessionID id.SessionID
	Role      Role
	// Area is the official's assigned jurisdiction; empty for farmers.
	Area string
}

// FarmerID returns the subject as a farmer ID, or false for officials.
func (c Caller) FarmerID() (id.FarmerID, bool) {
	if c.Role != RoleFarmer || c.SubjectID == uuid.Nil {
		return id.FarmerID{}, false
	}
	return id.FarmerID(c.SubjectID), true
}

// OfficialID returns the subject as an official ID, or false for farmers.
func (c Caller) OfficialID() (id.OfficialID, bool) {
	if c.Role != RoleOfficial || c.SubjectID == uuid.Nil {
		return id.OfficialID{}, false
	}
	return id.OfficialID(c.SubjectID), true
}

type (
	principalKey   struct{}
	deviceKey      struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue.
var (
	ContextKeyPrincipal   = principalKey{}
	ContextKeyDevice      = deviceKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Principal
// -----------------------------------------------------------------------------

// Principal returns the authenticated caller, or the zero Caller.
func Principal(ctx context.Context) Caller {
	if c, ok := ctx.Value(ContextKeyPrincipal).(Caller); ok {
		return c
	}
	return Caller{}
}

func WithPrincipal(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, c)
}

// -----------------------------------------------------------------------------
// Client metadata
// -----------------------------------------------------------------------------

// Device returns a display label for the calling device ("Chrome on Android").
func Device(ctx context.Context) string {
	if d, ok := ctx.Value(ContextKeyDevice).(string); ok {
		return d
	}
	return ""
}

func WithDevice(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, ContextKeyDevice, label)
}

func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the request-scoped time, falling back to time.Now() for workers
// and other non-HTTP callers.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins "now" for everything downstream of ctx.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
