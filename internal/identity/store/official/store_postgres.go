package official

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"farmshield/internal/identity/models"
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

func (s *PostgresStore) Upsert(ctx context.Context, o *models.Official) error {
	var rawID uuid.UUID
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO officials (id, government_id, name, password_hash, area, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (government_id) DO UPDATE
			SET name = EXCLUDED.name, password_hash = EXCLUDED.password_hash,
			    area = EXCLUDED.area, active = EXCLUDED.active
		RETURNING id`,
		uuid.UUID(o.ID), o.GovernmentID, o.Name, o.PasswordHash, o.Area, o.Active, o.CreatedAt,
	).Scan(&rawID)
	if err != nil {
		return fmt.Errorf("upsert official: %w", err)
	}
	o.ID = id.OfficialID(rawID)
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, officialID id.OfficialID) (*models.Official, error) {
	return s.findOne(ctx, `WHERE id = $1`, uuid.UUID(officialID))
}

func (s *PostgresStore) FindByGovernmentID(ctx context.Context, governmentID string) (*models.Official, error) {
	return s.findOne(ctx, `WHERE government_id = $1`, governmentID)
}

func (s *PostgresStore) findOne(ctx context.Context, where string, arg any) (*models.Official, error) {
	var (
		o     models.Official
		rawID uuid.UUID
	)
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, government_id, name, password_hash, area, active, created_at
		FROM officials `+where, arg,
	).Scan(&rawID, &o.GovernmentID, &o.Name, &o.PasswordHash, &o.Area, &o.Active, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("official: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find official: %w", err)
	}
	o.ID = id.OfficialID(rawID)
	return &o, nil
}
