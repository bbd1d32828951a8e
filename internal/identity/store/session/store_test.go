package session

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"farmshield/internal/identity/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/requestcontext"
)

type InMemorySessionSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	sess  *models.Session
}

func TestInMemorySessionSuite(t *testing.T) {
	suite.Run(t, new(InMemorySessionSuite))
}

func (s *InMemorySessionSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	now := time.Now()
	s.sess = &models.Session{
		ID:               id.SessionID(uuid.New()),
		SubjectID:        uuid.New(),
		Role:             requestcontext.RoleFarmer,
		RefreshTokenHash: "hash-1",
		AccessTokenJTI:   "jti-1",
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Hour),
	}
	s.Require().NoError(s.store.Create(s.ctx, s.sess))
}

func (s *InMemorySessionSuite) TestRotateOnlyFromCurrentHash() {
	s.Require().NoError(s.store.Rotate(s.ctx, s.sess.ID, "hash-1", "hash-2", "jti-2"))

	err := s.store.Rotate(s.ctx, s.sess.ID, "hash-1", "hash-3", "jti-3")
	s.ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.FindByRefreshHash(s.ctx, "hash-1")
	s.ErrorIs(err, sentinel.ErrNotFound)
	found, err := s.store.FindByRefreshHash(s.ctx, "hash-2")
	s.Require().NoError(err)
	s.Equal("jti-2", found.AccessTokenJTI)
}

func (s *InMemorySessionSuite) TestRevokeIsOnce() {
	at := time.Now()
	s.Require().NoError(s.store.Revoke(s.ctx, s.sess.ID, at))
	s.ErrorIs(s.store.Revoke(s.ctx, s.sess.ID, at), sentinel.ErrAlreadyUsed)

	found, err := s.store.FindByID(s.ctx, s.sess.ID)
	s.Require().NoError(err)
	s.False(found.IsActive(at))

	s.ErrorIs(s.store.Rotate(s.ctx, s.sess.ID, "hash-1", "hash-2", "jti-2"), sentinel.ErrConflict,
		"a revoked session cannot rotate")
}

func (s *InMemorySessionSuite) TestDuplicateRefreshHash() {
	dup := *s.sess
	dup.ID = id.SessionID(uuid.New())
	s.ErrorIs(s.store.Create(s.ctx, &dup), sentinel.ErrConflict)
}

func TestPostgresRotate_LostRaceIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sessionID := id.SessionID(uuid.New())
	mock.ExpectExec("UPDATE sessions SET refresh_token_hash").
		WithArgs(uuid.UUID(sessionID), "old", "new", "jti").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewPostgres(db).Rotate(context.Background(), sessionID, "old", "new", "jti")
	require.ErrorIs(t, err, sentinel.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByRefreshHash_ScansRevokedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sessionID := uuid.New()
	subject := uuid.New()
	now := time.Now().UTC()
	revoked := now.Add(-time.Minute)
	mock.ExpectQuery("SELECT (.+) FROM sessions WHERE refresh_token_hash").
		WithArgs("hash").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "subject_id", "role", "area", "refresh_token_hash", "access_token_jti",
			"device", "client_ip", "created_at", "expires_at", "revoked_at",
		}).AddRow(sessionID.String(), subject.String(), "official", "Jaipur", "hash", "jti", "Chrome on Android", "10.0.0.1", now, now.Add(time.Hour), revoked))

	sess, err := NewPostgres(db).FindByRefreshHash(context.Background(), "hash")
	require.NoError(t, err)
	require.NotNil(t, sess.RevokedAt)
	require.Equal(t, requestcontext.RoleOfficial, sess.Role)
	require.Equal(t, "Jaipur", sess.Caller().Area)
	require.False(t, sess.IsActive(now))
}
