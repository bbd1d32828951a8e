package models

import (
	"time"

	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
)

// Official is a government verifier (patwari). Officials are seeded out of
// band and log in with a password.
type Official struct {
	ID           id.OfficialID
	GovernmentID string
	Name         string
	PasswordHash string
	Area         string
	Active       bool
	CreatedAt    time.Time
}

func NewOfficial(officialID id.OfficialID, governmentID, name, passwordHash, area string, now time.Time) (*Official, error) {
	if officialID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "official id is required")
	}
	if governmentID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "government id is required")
	}
	if passwordHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "password hash is required")
	}
	return &Official{
		ID:           officialID,
		GovernmentID: governmentID,
		Name:         name,
		PasswordHash: passwordHash,
		Area:         area,
		Active:       true,
		CreatedAt:    now,
	}, nil
}
