package audit

import (
	"context"
	"time"
)

// EventCategory classifies lifecycle events by retention and routing needs.
type EventCategory string

const (
	// CategoryCompliance covers events with contractual or regulatory weight:
	// policy issuance, payment, verification decisions and claim adjudication.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers authentication and session events.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain services to capture key lifecycle actions.
// Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	FarmerID  string
	// ActorID is the official acting on a farmer's record, when there is one.
	ActorID   string
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
}

type AuditEvent string

const (
	// Identity events
	EventOTPIssued         AuditEvent = "otp_issued"
	EventOTPVerified       AuditEvent = "otp_verified"
	EventFarmerRegistered  AuditEvent = "farmer_registered"
	EventFarmerUpdated     AuditEvent = "farmer_updated"
	EventOfficialLoggedIn  AuditEvent = "official_logged_in"
	EventSessionCreated    AuditEvent = "session_created"
	EventSessionRefreshed  AuditEvent = "session_refreshed"
	EventSessionRevoked    AuditEvent = "session_revoked"
	EventAuthFailed        AuditEvent = "auth_failed"
	EventOTPRateLimited    AuditEvent = "otp_rate_limited"
	EventOfficialSeeded    AuditEvent = "official_seeded"
	EventSensorRegistered  AuditEvent = "sensor_registered"
	EventSensorReadingSent AuditEvent = "sensor_reading_recorded"

	// Policy lifecycle
	EventLandRegistered   AuditEvent = "land_registered"
	EventPolicyApplied    AuditEvent = "policy_applied"
	EventPaymentConfirmed AuditEvent = "payment_confirmed"
	EventPolicyActivated  AuditEvent = "policy_activated"
	EventPolicyExpired    AuditEvent = "policy_expired"

	// Verification and claims
	EventVerificationDecided AuditEvent = "verification_decided"
	EventSensorBound         AuditEvent = "sensor_bound"
	EventClaimFiled          AuditEvent = "claim_filed"
	EventClaimAdjudicated    AuditEvent = "claim_adjudicated"
	EventAssessorFallback    AuditEvent = "assessor_fallback"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventFarmerRegistered:    CategoryCompliance,
	EventPolicyApplied:       CategoryCompliance,
	EventPaymentConfirmed:    CategoryCompliance,
	EventPolicyActivated:     CategoryCompliance,
	EventPolicyExpired:       CategoryCompliance,
	EventVerificationDecided: CategoryCompliance,
	EventSensorBound:         CategoryCompliance,
	EventClaimFiled:          CategoryCompliance,
	EventClaimAdjudicated:    CategoryCompliance,

	EventAuthFailed:       CategorySecurity,
	EventSessionRevoked:   CategorySecurity,
	EventOTPRateLimited:   CategorySecurity,
	EventOfficialLoggedIn: CategorySecurity,

	EventOTPIssued:         CategoryOperations,
	EventOTPVerified:       CategoryOperations,
	EventFarmerUpdated:     CategoryOperations,
	EventSessionCreated:    CategoryOperations,
	EventSessionRefreshed:  CategoryOperations,
	EventOfficialSeeded:    CategoryOperations,
	EventSensorRegistered:  CategoryOperations,
	EventSensorReadingSent: CategoryOperations,
	EventLandRegistered:    CategoryOperations,
	EventAssessorFallback:  CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists events. Postgres writes land in the outbox and are relayed
// to Kafka; the in-memory store keeps them for tests and single-node runs.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByFarmer(ctx context.Context, farmerID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
