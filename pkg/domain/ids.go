// Package domain holds identifier types and small value objects shared by every module.
//
// Each aggregate gets its own ID type so a PolicyID can never be passed where a
// ClaimID is expected. Parse functions are the trust-boundary constructors: they
// reject empty, malformed and nil UUIDs with CodeInvalidInput.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "farmshield/pkg/domain-errors"
)

type (
	FarmerID       uuid.UUID
	OfficialID     uuid.UUID
	SessionID      uuid.UUID
	LandID         uuid.UUID
	PolicyID       uuid.UUID
	VerificationID uuid.UUID
	ClaimID        uuid.UUID
	SensorID       uuid.UUID
	NotificationID uuid.UUID
	OTPID          uuid.UUID
)

func parseUUID(s, kind string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return u, nil
}

func ParseFarmerID(s string) (FarmerID, error) {
	u, err := parseUUID(s, "farmer ID")
	return FarmerID(u), err
}

func ParseOfficialID(s string) (OfficialID, error) {
	u, err := parseUUID(s, "official ID")
	return OfficialID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session ID")
	return SessionID(u), err
}

func ParseLandID(s string) (LandID, error) {
	u, err := parseUUID(s, "land ID")
	return LandID(u), err
}

func ParsePolicyID(s string) (PolicyID, error) {
	u, err := parseUUID(s, "policy ID")
	return PolicyID(u), err
}

func ParseVerificationID(s string) (VerificationID, error) {
	u, err := parseUUID(s, "verification ID")
	return VerificationID(u), err
}

func ParseClaimID(s string) (ClaimID, error) {
	u, err := parseUUID(s, "claim ID")
	return ClaimID(u), err
}

func ParseSensorID(s string) (SensorID, error) {
	u, err := parseUUID(s, "sensor ID")
	return SensorID(u), err
}

func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID(s, "notification ID")
	return NotificationID(u), err
}

func (id FarmerID) String() string       { return uuid.UUID(id).String() }
func (id OfficialID) String() string     { return uuid.UUID(id).String() }
func (id SessionID) String() string      { return uuid.UUID(id).String() }
func (id LandID) String() string         { return uuid.UUID(id).String() }
func (id PolicyID) String() string       { return uuid.UUID(id).String() }
func (id VerificationID) String() string { return uuid.UUID(id).String() }
func (id ClaimID) String() string        { return uuid.UUID(id).String() }
func (id SensorID) String() string       { return uuid.UUID(id).String() }
func (id NotificationID) String() string { return uuid.UUID(id).String() }
func (id OTPID) String() string          { return uuid.UUID(id).String() }

func (id FarmerID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id OfficialID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id LandID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id PolicyID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id VerificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ClaimID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id SensorID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Text marshalling keeps IDs as canonical strings in JSON payloads.

func (id FarmerID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id OfficialID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id SessionID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id LandID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id PolicyID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id VerificationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ClaimID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id SensorID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id NotificationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
