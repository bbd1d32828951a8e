package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"farmshield/internal/platform/postgres"
	"farmshield/internal/sensor/models"
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

const sensorColumns = `id, code, land_id, active, last_reading_at, created_at`

func (s *PostgresStore) Create(ctx context.Context, sensor *models.Sensor) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO sensors (id, code, active, created_at) VALUES ($1, $2, $3, $4)`,
		uuid.UUID(sensor.ID), sensor.Code, sensor.Active, sensor.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return fmt.Errorf("sensor code %s: %w", sensor.Code, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert sensor: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByCode(ctx context.Context, code string) (*models.Sensor, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+sensorColumns+` FROM sensors WHERE code = $1`, code)
	return scanSensor(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, sensorID id.SensorID) (*models.Sensor, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+sensorColumns+` FROM sensors WHERE id = $1`, uuid.UUID(sensorID))
	return scanSensor(row)
}

func (s *PostgresStore) List(ctx context.Context, availableOnly bool) ([]*models.Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensors`
	if availableOnly {
		query += ` WHERE active AND land_id IS NULL`
	}
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx, query+` ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}
	defer rows.Close()

	var out []*models.Sensor
	for rows.Next() {
		sensor, err := scanSensor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sensor)
	}
	return out, rows.Err()
}

// Bind claims the sensor for the land in one conditional update. Losing the
// race, or a land that already carries a sensor, is a conflict.
func (s *PostgresStore) Bind(ctx context.Context, code string, landID id.LandID) (*models.Sensor, error) {
	exec := tx.Execer(ctx, s.db)
	row := exec.QueryRowContext(ctx, `
		UPDATE sensors SET land_id = $1
		WHERE code = $2 AND land_id IS NULL AND active
		RETURNING `+sensorColumns,
		uuid.UUID(landID), code,
	)
	sensor, err := scanSensor(row)
	switch {
	case err == nil:
		return sensor, nil
	case postgres.IsUniqueViolation(err, ""):
		return nil, fmt.Errorf("land %s already has a sensor: %w", landID, sentinel.ErrConflict)
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, fmt.Errorf("bind sensor: %w", err)
	}

	var exists bool
	if err := exec.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM sensors WHERE code = $1)`, code,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check sensor: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("sensor %s: %w", code, sentinel.ErrNotFound)
	}
	return nil, fmt.Errorf("sensor %s not available: %w", code, sentinel.ErrConflict)
}

// RecordReading inserts the reading and touches last_reading_at in one
// statement.
func (s *PostgresStore) RecordReading(ctx context.Context, reading *models.Reading) error {
	var rainfall decimal.NullDecimal
	if reading.Rainfall != nil {
		rainfall = decimal.NullDecimal{Decimal: *reading.Rainfall, Valid: true}
	}
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx, `
		WITH touched AS (
			UPDATE sensors SET last_reading_at = $6 WHERE id = $1 RETURNING id
		)
		INSERT INTO sensor_readings (sensor_id, soil_moisture, humidity, temperature, rainfall, recorded_at)
		SELECT id, $2, $3, $4, $5, $6 FROM touched
		RETURNING id`,
		uuid.UUID(reading.SensorID), reading.SoilMoisture, reading.Humidity, reading.Temperature,
		rainfall, reading.RecordedAt,
	).Scan(&reading.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sensor %s: %w", reading.SensorID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestReadings(ctx context.Context, sensorID id.SensorID, limit int) ([]models.Reading, error) {
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx, `
		SELECT id, sensor_id, soil_moisture, humidity, temperature, rainfall, recorded_at
		FROM sensor_readings WHERE sensor_id = $1
		ORDER BY recorded_at DESC, id DESC LIMIT $2`,
		uuid.UUID(sensorID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	var out []models.Reading
	for rows.Next() {
		var (
			r        models.Reading
			rawID    uuid.UUID
			rainfall decimal.NullDecimal
		)
		if err := rows.Scan(&r.ID, &rawID, &r.SoilMoisture, &r.Humidity, &r.Temperature, &rainfall, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.SensorID = id.SensorID(rawID)
		if rainfall.Valid {
			r.Rainfall = &rainfall.Decimal
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx, `
		SELECT count(*), count(*) FILTER (WHERE active AND land_id IS NULL) FROM sensors`,
	).Scan(&stats.Total, &stats.Available)
	if err != nil {
		return models.Stats{}, fmt.Errorf("count sensors: %w", err)
	}
	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSensor(row scanner) (*models.Sensor, error) {
	var (
		sensor models.Sensor
		rawID  uuid.UUID
		landID uuid.NullUUID
		lastAt sql.NullTime
	)
	err := row.Scan(&rawID, &sensor.Code, &landID, &sensor.Active, &lastAt, &sensor.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sensor: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan sensor: %w", err)
	}
	sensor.ID = id.SensorID(rawID)
	if landID.Valid {
		bound := id.LandID(landID.UUID)
		sensor.LandID = &bound
	}
	if lastAt.Valid {
		sensor.LastReadingAt = &lastAt.Time
	}
	return &sensor, nil
}
