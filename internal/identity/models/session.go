package models

import (
	"time"

	"github.com/google/uuid"

	id "farmshield/pkg/domain"
	"farmshield/pkg/requestcontext"
)

// Session backs one refresh token. Access tokens carry the session ID and
// their own JTI so logout can revoke them before expiry.
type Session struct {
	ID               id.SessionID
	SubjectID        uuid.UUID
	Role             requestcontext.Role
	Area             string
	RefreshTokenHash string
	AccessTokenJTI   string
	Device           string
	ClientIP         string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
}

func (s *Session) IsActive(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

func (s *Session) Caller() requestcontext.Caller {
	return requestcontext.Caller{SubjectID: s.SubjectID, SessionID: s.ID, Role: s.Role, Area: s.Area}
}
