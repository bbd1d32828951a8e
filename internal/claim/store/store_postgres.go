package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"farmshield/internal/claim/models"
	"farmshield/internal/platform/postgres"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/platform/tx"
)

const uniqueClaimPerPolicy = "uq_claims_policy"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const claimColumns = `id, policy_id, policy_number, farmer_id, sensor_id, latitude, longitude, distance_meters,
	status, damage_percent, payout, finding, filed_at, processed_at`

// Create inserts the claim and its images. Callers run it inside a
// transaction so the rows land together.
func (s *PostgresStore) Create(ctx context.Context, c *models.Claim) error {
	exec := tx.Execer(ctx, s.db)
	var sensorID uuid.NullUUID
	if c.SensorID != nil {
		sensorID = uuid.NullUUID{UUID: uuid.UUID(*c.SensorID), Valid: true}
	}
	_, err := exec.ExecContext(ctx, `
		INSERT INTO claims (`+claimColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, $10, '', $11, NULL)`,
		uuid.UUID(c.ID), uuid.UUID(c.PolicyID), c.PolicyNumber, uuid.UUID(c.FarmerID), sensorID,
		c.Latitude, c.Longitude, c.DistanceMeters, string(c.Status), c.Payout, c.FiledAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, uniqueClaimPerPolicy) {
			return fmt.Errorf("claim for policy %s: %w", c.PolicyID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	for _, img := range c.Images {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO claim_images (id, claim_id, path, latitude, longitude, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			img.ID, uuid.UUID(c.ID), img.Path, img.Latitude, img.Longitude, img.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert claim image: %w", err)
		}
	}
	return nil
}

// Adjudicate moves a processing claim to its decision and stores the
// assessment. The status guard makes a second adjudication a no-op error.
func (s *PostgresStore) Adjudicate(ctx context.Context, claimID id.ClaimID, d models.Decision, a *models.Assessment, now time.Time) (*models.Claim, error) {
	exec := tx.Execer(ctx, s.db)
	row := exec.QueryRowContext(ctx, `
		UPDATE claims
		SET status = $2, damage_percent = $3, payout = $4, finding = $5, processed_at = $6
		WHERE id = $1 AND status = 'processing'
		RETURNING `+claimColumns,
		uuid.UUID(claimID), string(d.Status), a.DamagePercent, d.Payout, a.Finding, now,
	)
	c, err := scanClaim(row)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.missingOrDecided(ctx, claimID)
	}
	if err != nil {
		return nil, err
	}

	details, err := json.Marshal(a.Details)
	if err != nil {
		return nil, fmt.Errorf("encode assessment details: %w", err)
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO assessments (claim_id, damage_percent, finding, model_version, details, fallback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(claimID), a.DamagePercent, a.Finding, a.ModelVersion, details, a.Fallback, a.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert assessment: %w", err)
	}
	assessment := *a
	assessment.ClaimID = claimID
	c.Assessment = &assessment
	if err := s.attachImages(ctx, []*models.Claim{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) missingOrDecided(ctx context.Context, claimID id.ClaimID) error {
	var exists bool
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM claims WHERE id = $1)`, uuid.UUID(claimID)).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check claim: %w", err)
	}
	if !exists {
		return fmt.Errorf("claim %s: %w", claimID, sentinel.ErrNotFound)
	}
	return fmt.Errorf("claim %s already decided: %w", claimID, sentinel.ErrInvalidState)
}

func (s *PostgresStore) FindByID(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = $1`, uuid.UUID(claimID))
	c, err := scanClaim(row)
	if err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx, []*models.Claim{c}); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) ListByFarmer(ctx context.Context, farmerID id.FarmerID) ([]*models.Claim, error) {
	return s.query(ctx, `SELECT `+claimColumns+` FROM claims WHERE farmer_id = $1 ORDER BY filed_at DESC`, uuid.UUID(farmerID))
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.Claim, error) {
	return s.query(ctx, `SELECT `+claimColumns+` FROM claims ORDER BY filed_at DESC`)
}

func (s *PostgresStore) Counts(ctx context.Context) (models.Counts, error) {
	var c models.Counts
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE status IN ('pending', 'processing')),
		       count(*) FILTER (WHERE status = 'approved'),
		       count(*) FILTER (WHERE status = 'rejected')
		FROM claims`).Scan(&c.Total, &c.Processing, &c.Approved, &c.Rejected)
	if err != nil {
		return models.Counts{}, fmt.Errorf("count claims: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*models.Claim, error) {
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	var claims []*models.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		claims = append(claims, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *PostgresStore) hydrate(ctx context.Context, claims []*models.Claim) error {
	if len(claims) == 0 {
		return nil
	}
	if err := s.attachImages(ctx, claims); err != nil {
		return err
	}
	return s.attachAssessments(ctx, claims)
}

func claimIDs(claims []*models.Claim) ([]string, map[string]*models.Claim) {
	ids := make([]string, len(claims))
	byID := make(map[string]*models.Claim, len(claims))
	for i, c := range claims {
		ids[i] = c.ID.String()
		byID[ids[i]] = c
	}
	return ids, byID
}

func (s *PostgresStore) attachImages(ctx context.Context, claims []*models.Claim) error {
	ids, byID := claimIDs(claims)
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx, `
		SELECT id, claim_id, path, latitude, longitude, created_at
		FROM claim_images WHERE claim_id = ANY($1::uuid[])
		ORDER BY created_at, path`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query claim images: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			img     models.Image
			claimID uuid.UUID
		)
		if err := rows.Scan(&img.ID, &claimID, &img.Path, &img.Latitude, &img.Longitude, &img.CreatedAt); err != nil {
			return fmt.Errorf("scan claim image: %w", err)
		}
		img.ClaimID = id.ClaimID(claimID)
		if c, ok := byID[claimID.String()]; ok {
			c.Images = append(c.Images, img)
		}
	}
	return rows.Err()
}

func (s *PostgresStore) attachAssessments(ctx context.Context, claims []*models.Claim) error {
	ids, byID := claimIDs(claims)
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx, `
		SELECT claim_id, damage_percent, finding, model_version, details, fallback, created_at
		FROM assessments WHERE claim_id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("query assessments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			a       models.Assessment
			claimID uuid.UUID
			details []byte
		)
		if err := rows.Scan(&claimID, &a.DamagePercent, &a.Finding, &a.ModelVersion, &details, &a.Fallback, &a.CreatedAt); err != nil {
			return fmt.Errorf("scan assessment: %w", err)
		}
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return fmt.Errorf("decode assessment details: %w", err)
		}
		a.ClaimID = id.ClaimID(claimID)
		if c, ok := byID[claimID.String()]; ok {
			c.Assessment = &a
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanClaim(row scanner) (*models.Claim, error) {
	var (
		c           models.Claim
		rawID       uuid.UUID
		policyID    uuid.UUID
		farmerID    uuid.UUID
		sensorID    uuid.NullUUID
		status      string
		damage      decimal.NullDecimal
		processedAt sql.NullTime
	)
	err := row.Scan(&rawID, &policyID, &c.PolicyNumber, &farmerID, &sensorID, &c.Latitude, &c.Longitude,
		&c.DistanceMeters, &status, &damage, &c.Payout, &c.Finding, &c.FiledAt, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan claim: %w", err)
	}
	c.ID = id.ClaimID(rawID)
	c.PolicyID = id.PolicyID(policyID)
	c.FarmerID = id.FarmerID(farmerID)
	c.Status = models.Status(status)
	if sensorID.Valid {
		sid := id.SensorID(sensorID.UUID)
		c.SensorID = &sid
	}
	if damage.Valid {
		c.DamagePercent = &damage.Decimal
	}
	if processedAt.Valid {
		c.ProcessedAt = &processedAt.Time
	}
	return &c, nil
}
