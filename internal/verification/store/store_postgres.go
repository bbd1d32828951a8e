package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"farmshield/internal/platform/postgres"
	"farmshield/internal/verification/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const verificationColumns = `id, policy_id, official_id, status, remarks, sensor_id, created_at, decided_at`

func (s *PostgresStore) Create(ctx context.Context, v *models.Verification) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO verifications (id, policy_id, status, remarks, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(v.ID), uuid.UUID(v.PolicyID), string(v.Status), v.Remarks, v.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return fmt.Errorf("verification for policy %s: %w", v.PolicyID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, verificationID id.VerificationID) (*models.Verification, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+verificationColumns+` FROM verifications WHERE id = $1`, uuid.UUID(verificationID))
	return scanVerification(row)
}

func (s *PostgresStore) FindByPolicy(ctx context.Context, policyID id.PolicyID) (*models.Verification, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+verificationColumns+` FROM verifications WHERE policy_id = $1`, uuid.UUID(policyID))
	return scanVerification(row)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status) ([]*models.Verification, error) {
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx,
		`SELECT `+verificationColumns+` FROM verifications WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Verification
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Decide is a conditional update on status = 'pending'. Of two concurrent
// decisions exactly one matches a row; the other sees ErrInvalidState.
func (s *PostgresStore) Decide(ctx context.Context, d models.Decision) (*models.Verification, error) {
	exec := tx.Execer(ctx, s.db)
	var sensorID uuid.NullUUID
	if d.SensorID != nil {
		sensorID = uuid.NullUUID{UUID: uuid.UUID(*d.SensorID), Valid: true}
	}
	row := exec.QueryRowContext(ctx, `
		UPDATE verifications
		SET status = $2, official_id = $3, remarks = $4, sensor_id = $5, decided_at = $6
		WHERE id = $1 AND status = 'pending'
		RETURNING `+verificationColumns,
		uuid.UUID(d.VerificationID), string(d.Outcome), uuid.UUID(d.OfficialID), d.Remarks, sensorID, d.DecidedAt,
	)
	v, err := scanVerification(row)
	if err == nil || !errors.Is(err, sentinel.ErrNotFound) {
		return v, err
	}

	var exists bool
	if err := exec.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM verifications WHERE id = $1)`, uuid.UUID(d.VerificationID),
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check verification: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("verification %s: %w", d.VerificationID, sentinel.ErrNotFound)
	}
	return nil, fmt.Errorf("verification %s already decided: %w", d.VerificationID, sentinel.ErrInvalidState)
}

func (s *PostgresStore) Counts(ctx context.Context) (models.Counts, error) {
	var c models.Counts
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx, `
		SELECT count(*) FILTER (WHERE status = 'pending'),
		       count(*) FILTER (WHERE status = 'approved'),
		       count(*) FILTER (WHERE status = 'rejected')
		FROM verifications`,
	).Scan(&c.Pending, &c.Approved, &c.Rejected)
	if err != nil {
		return models.Counts{}, fmt.Errorf("count verifications: %w", err)
	}
	return c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVerification(row scanner) (*models.Verification, error) {
	var (
		v          models.Verification
		rawID      uuid.UUID
		policyID   uuid.UUID
		officialID uuid.NullUUID
		sensorID   uuid.NullUUID
		status     string
		decidedAt  sql.NullTime
	)
	err := row.Scan(&rawID, &policyID, &officialID, &status, &v.Remarks, &sensorID, &v.CreatedAt, &decidedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("verification: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan verification: %w", err)
	}
	v.ID = id.VerificationID(rawID)
	v.PolicyID = id.PolicyID(policyID)
	v.Status = models.Status(status)
	if officialID.Valid {
		o := id.OfficialID(officialID.UUID)
		v.OfficialID = &o
	}
	if sensorID.Valid {
		sid := id.SensorID(sensorID.UUID)
		v.SensorID = &sid
	}
	if decidedAt.Valid {
		v.DecidedAt = &decidedAt.Time
	}
	return &v, nil
}
