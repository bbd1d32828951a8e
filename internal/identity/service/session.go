package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"farmshield/internal/identity/models"
	"farmshield/internal/identity/secrets"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/platform/audit"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/requestcontext"
)

const tokenTypeBearer = "Bearer"

// startSession persists a new session for caller and mints its token pair.
func (s *Service) startSession(ctx context.Context, caller requestcontext.Caller) (*models.AuthResult, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)

	caller.SessionID = id.SessionID(s.newID())
	accessToken, jti, err := s.tokens.GenerateAccessToken(caller, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate access token")
	}
	refreshToken, err := secrets.Generate()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate refresh token")
	}

	sess := &models.Session{
		ID:               caller.SessionID,
		SubjectID:        caller.SubjectID,
		Role:             caller.Role,
		Area:             caller.Area,
		RefreshTokenHash: secrets.Fingerprint(refreshToken),
		AccessTokenJTI:   jti,
		Device:           requestcontext.Device(ctx),
		ClientIP:         requestcontext.ClientIP(ctx),
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.cfg.RefreshTokenTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
	}

	if s.metrics != nil {
		s.metrics.ObserveTokenIssue(float64(time.Since(start).Microseconds()) / 1000.0)
	}
	s.logAudit(ctx, string(audit.EventSessionCreated), subjectAttrs(caller, "session_id", sess.ID.String(), "device", sess.Device)...)

	return &models.AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int(s.cfg.AccessTokenTTL.Seconds()),
		SubjectID:    caller.SubjectID.String(),
		Role:         string(caller.Role),
	}, nil
}

// Refresh rotates the refresh token. The old token stops working the moment
// the rotation commits, and its access token is revoked.
func (s *Service) Refresh(ctx context.Context, req *models.RefreshRequest) (*models.AuthResult, error) {
	if req.RefreshToken == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "refresh_token is required")
	}
	oldHash := secrets.Fingerprint(req.RefreshToken)
	sess, err := s.sessions.FindByRefreshHash(ctx, oldHash)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.authFailure(ctx, "refresh_unknown")
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if !sess.IsActive(requestcontext.Now(ctx)) {
		s.authFailure(ctx, "refresh_inactive", "session_id", sess.ID.String())
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session has ended")
	}

	result := &models.AuthResult{}
	caller := sess.Caller()
	switch caller.Role {
	case requestcontext.RoleFarmer:
		farmer, err := s.farmers.FindByID(ctx, id.FarmerID(caller.SubjectID))
		if err != nil {
			return nil, s.subjectLookupError(err)
		}
		fillFarmer(result, farmer)
	case requestcontext.RoleOfficial:
		official, err := s.officials.FindByID(ctx, id.OfficialID(caller.SubjectID))
		if err != nil {
			return nil, s.subjectLookupError(err)
		}
		if !official.Active {
			return nil, dErrors.New(dErrors.CodeForbidden, "official account is inactive")
		}
		result.Name = official.Name
		caller.Area = official.Area
	}

	accessToken, jti, err := s.tokens.GenerateAccessToken(caller, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate access token")
	}
	refreshToken, err := secrets.Generate()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate refresh token")
	}
	if err := s.sessions.Rotate(ctx, sess.ID, oldHash, secrets.Fingerprint(refreshToken), jti); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			if s.metrics != nil {
				s.metrics.IncrementRefreshReplay()
			}
			s.authFailure(ctx, "refresh_replayed", "session_id", sess.ID.String())
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to rotate session")
	}
	s.revokeAccessToken(ctx, sess.AccessTokenJTI)

	s.logAudit(ctx, string(audit.EventSessionRefreshed), subjectAttrs(caller, "session_id", sess.ID.String())...)

	result.AccessToken = accessToken
	result.RefreshToken = refreshToken
	result.TokenType = tokenTypeBearer
	result.ExpiresIn = int(s.cfg.AccessTokenTTL.Seconds())
	result.SubjectID = caller.SubjectID.String()
	result.Role = string(caller.Role)
	return result, nil
}

// Logout ends the caller's session. Logging out twice is not an error.
func (s *Service) Logout(ctx context.Context) error {
	caller := requestcontext.Principal(ctx)
	if caller.SubjectID == uuid.Nil || caller.SessionID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	sess, err := s.sessions.FindByID(ctx, caller.SessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if sess.SubjectID != caller.SubjectID {
		return dErrors.New(dErrors.CodeForbidden, "forbidden")
	}

	err = s.sessions.Revoke(ctx, sess.ID, requestcontext.Now(ctx))
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke session")
	}
	s.revokeAccessToken(ctx, sess.AccessTokenJTI)

	if s.metrics != nil {
		s.metrics.IncrementSessionsRevoked()
	}
	s.logAudit(ctx, string(audit.EventSessionRevoked), subjectAttrs(caller, "session_id", sess.ID.String())...)
	return nil
}

// revokeAccessToken is best effort; the token expires on its own.
func (s *Service) revokeAccessToken(ctx context.Context, jti string) {
	if jti == "" {
		return
	}
	if err := s.trl.RevokeToken(ctx, jti, s.cfg.AccessTokenTTL); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to add token to revocation list", "error", err, "jti", jti)
	}
}

func (s *Service) subjectLookupError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeUnauthorized, "account no longer exists")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
}

func subjectAttrs(caller requestcontext.Caller, extra ...any) []any {
	out := make([]any, 0, len(extra)+4)
	switch caller.Role {
	case requestcontext.RoleFarmer:
		out = append(out, "farmer_id", caller.SubjectID.String())
	case requestcontext.RoleOfficial:
		out = append(out, "official_id", caller.SubjectID.String())
	}
	out = append(out, "role", string(caller.Role))
	return append(out, extra...)
}
