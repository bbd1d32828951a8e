package models

import (
	"time"

	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseOutcome accepts the two decisions an official can make.
func ParseOutcome(raw string) (Status, error) {
	switch Status(raw) {
	case StatusApproved, StatusRejected:
		return Status(raw), nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "outcome is required")
	}
	return "", dErrors.New(dErrors.CodeValidation, "outcome must be approved or rejected")
}

// Verification is the field check an official performs after a policy is
// paid. There is exactly one per policy and it is decided at most once.
type Verification struct {
	ID         id.VerificationID
	PolicyID   id.PolicyID
	OfficialID *id.OfficialID
	Status     Status
	Remarks    string
	SensorID   *id.SensorID
	CreatedAt  time.Time
	DecidedAt  *time.Time
}

func NewPending(verificationID id.VerificationID, policyID id.PolicyID, now time.Time) (*Verification, error) {
	if verificationID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verification id is required")
	}
	if policyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "policy id is required")
	}
	return &Verification{ID: verificationID, PolicyID: policyID, Status: StatusPending, CreatedAt: now}, nil
}

func (v *Verification) IsPending() bool {
	return v.Status == StatusPending
}

// Decision is the conditional write applied to a pending verification.
type Decision struct {
	VerificationID id.VerificationID
	OfficialID     id.OfficialID
	Outcome        Status
	Remarks        string
	SensorID       *id.SensorID
	DecidedAt      time.Time
}

// Apply copies a decision onto the record.
func (v *Verification) Apply(d Decision) {
	officialID := d.OfficialID
	decidedAt := d.DecidedAt
	v.OfficialID = &officialID
	v.Status = d.Outcome
	v.Remarks = d.Remarks
	v.SensorID = d.SensorID
	v.DecidedAt = &decidedAt
}

// Counts is the per-status tally for dashboards.
type Counts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}
