package land

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"farmshield/internal/platform/postgres"
	"farmshield/internal/policy/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/platform/tx"
)

const khasraConstraint = "uq_lands_khasra"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, l *models.Land) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO lands (id, farmer_id, khasra_number, area_acres, crop_type, latitude, longitude, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(l.ID), uuid.UUID(l.FarmerID), l.KhasraNumber, l.AreaAcres, l.CropType, l.Latitude, l.Longitude, l.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, khasraConstraint) {
			return fmt.Errorf("khasra %s: %w", l.KhasraNumber, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert land: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, landID id.LandID) (*models.Land, error) {
	var (
		l        models.Land
		rawID    uuid.UUID
		farmerID uuid.UUID
		sensorID uuid.NullUUID
	)
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, farmer_id, khasra_number, area_acres, crop_type, latitude, longitude, sensor_id, created_at
		FROM lands WHERE id = $1`, uuid.UUID(landID),
	).Scan(&rawID, &farmerID, &l.KhasraNumber, &l.AreaAcres, &l.CropType, &l.Latitude, &l.Longitude, &sensorID, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("land %s: %w", landID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find land: %w", err)
	}
	l.ID = id.LandID(rawID)
	l.FarmerID = id.FarmerID(farmerID)
	if sensorID.Valid {
		sid := id.SensorID(sensorID.UUID)
		l.SensorID = &sid
	}
	return &l, nil
}

func (s *PostgresStore) SetSensor(ctx context.Context, landID id.LandID, sensorID id.SensorID) error {
	exec := tx.Execer(ctx, s.db)
	res, err := exec.ExecContext(ctx,
		`UPDATE lands SET sensor_id = $2 WHERE id = $1 AND sensor_id IS NULL`,
		uuid.UUID(landID), uuid.UUID(sensorID),
	)
	if err != nil {
		return fmt.Errorf("set land sensor: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("set land sensor: %w", err)
	} else if n == 1 {
		return nil
	}

	var exists bool
	if err := exec.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM lands WHERE id = $1)`, uuid.UUID(landID),
	).Scan(&exists); err != nil {
		return fmt.Errorf("check land: %w", err)
	}
	if !exists {
		return fmt.Errorf("land %s: %w", landID, sentinel.ErrNotFound)
	}
	return fmt.Errorf("land %s already has a sensor: %w", landID, sentinel.ErrInvalidState)
}
