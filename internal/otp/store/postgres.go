package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"farmshield/internal/otp/models"
	"farmshield/internal/platform/postgres"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/platform/tx"
)

// PostgresStore rotates codes under a per-phone advisory lock held for the
// transaction, backed by a partial unique index on unused codes.
type PostgresStore struct {
	db     *sql.DB
	runner *tx.PostgresRunner
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, runner: tx.NewPostgresRunner(db, 0)}
}

func (s *PostgresStore) Rotate(ctx context.Context, rec *models.Record) error {
	return s.runner.RunInTx(ctx, string(rec.Phone), func(ctx context.Context) error {
		exec := tx.Execer(ctx, s.db)
		if _, err := exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(rec.Phone)); err != nil {
			return fmt.Errorf("lock otp phone: %w", err)
		}
		if _, err := exec.ExecContext(ctx,
			`UPDATE otp_records SET used = TRUE WHERE phone = $1 AND used = FALSE`, string(rec.Phone),
		); err != nil {
			return fmt.Errorf("invalidate otp codes: %w", err)
		}
		_, err := exec.ExecContext(ctx, `
			INSERT INTO otp_records (id, phone, code, expires_at, used, created_at)
			VALUES ($1, $2, $3, $4, FALSE, $5)`,
			uuid.UUID(rec.ID), string(rec.Phone), rec.Code, rec.ExpiresAt, rec.CreatedAt,
		)
		if err != nil {
			if postgres.IsUniqueViolation(err, "uq_otp_one_unused") {
				return fmt.Errorf("insert otp: %w", sentinel.ErrConflict)
			}
			return fmt.Errorf("insert otp: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) FindActive(ctx context.Context, phone id.Phone) (*models.Record, error) {
	var (
		rec   models.Record
		rawID uuid.UUID
		p     string
	)
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, phone, code, expires_at, used, created_at
		FROM otp_records
		WHERE phone = $1 AND used = FALSE
		ORDER BY created_at DESC
		LIMIT 1`, string(phone),
	).Scan(&rawID, &p, &rec.Code, &rec.ExpiresAt, &rec.Used, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no unused otp for phone: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find active otp: %w", err)
	}
	rec.ID = id.OTPID(rawID)
	rec.Phone = id.Phone(p)
	return &rec, nil
}

// MarkUsed consumes the record only if it is still unused, so two concurrent
// verifications of the same code cannot both succeed.
func (s *PostgresStore) MarkUsed(ctx context.Context, recordID id.OTPID) error {
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx,
		`UPDATE otp_records SET used = TRUE WHERE id = $1 AND used = FALSE`, uuid.UUID(recordID))
	if err != nil {
		return fmt.Errorf("mark otp used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark otp used: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("otp %s: %w", recordID, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM otp_records WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge otp records: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
