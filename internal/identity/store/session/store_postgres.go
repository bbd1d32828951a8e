package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"farmshield/internal/identity/models"
	"farmshield/internal/platform/postgres"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/platform/tx"
	"farmshield/pkg/requestcontext"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sessionColumns = `id, subject_id, role, area, refresh_token_hash, access_token_jti,
	device, client_ip, created_at, expires_at, revoked_at`

func (s *PostgresStore) Create(ctx context.Context, sess *models.Session) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(sess.ID), sess.SubjectID, string(sess.Role), sess.Area, sess.RefreshTokenHash,
		sess.AccessTokenJTI, sess.Device, sess.ClientIP, sess.CreatedAt, sess.ExpiresAt, sess.RevokedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return fmt.Errorf("session refresh token: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return s.findOne(ctx, `WHERE id = $1`, uuid.UUID(sessionID))
}

func (s *PostgresStore) FindByRefreshHash(ctx context.Context, hash string) (*models.Session, error) {
	return s.findOne(ctx, `WHERE refresh_token_hash = $1`, hash)
}

func (s *PostgresStore) Rotate(ctx context.Context, sessionID id.SessionID, oldHash, newHash, accessJTI string) error {
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		UPDATE sessions SET refresh_token_hash = $3, access_token_jti = $4
		WHERE id = $1 AND refresh_token_hash = $2 AND revoked_at IS NULL`,
		uuid.UUID(sessionID), oldHash, newHash, accessJTI,
	)
	if err != nil {
		return fmt.Errorf("rotate session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) Revoke(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		uuid.UUID(sessionID), at)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*models.Session, error) {
	var (
		sess      models.Session
		rawID     uuid.UUID
		role      string
		revokedAt sql.NullTime
	)
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions `+where, arg,
	).Scan(&rawID, &sess.SubjectID, &role, &sess.Area, &sess.RefreshTokenHash, &sess.AccessTokenJTI,
		&sess.Device, &sess.ClientIP, &sess.CreatedAt, &sess.ExpiresAt, &revokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	sess.ID = id.SessionID(rawID)
	sess.Role = requestcontext.Role(role)
	if revokedAt.Valid {
		sess.RevokedAt = &revokedAt.Time
	}
	return &sess, nil
}
