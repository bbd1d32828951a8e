package policy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"farmshield/internal/platform/postgres"
	"farmshield/internal/policy/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
	"farmshield/pkg/platform/tx"
)

const numberConstraint = "uq_policies_number"

const policyColumns = `id, farmer_id, land_id, policy_number, premium, coverage, crop_type,
	start_date, end_date, payment_order_ref, payment_ref, status, created_at, updated_at`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts the policy. A policy-number collision is absorbed with
// ON CONFLICT so the surrounding transaction stays usable for a retry.
func (s *PostgresStore) Create(ctx context.Context, p *models.Policy) error {
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO policies (id, farmer_id, land_id, policy_number, premium, coverage, crop_type,
			start_date, end_date, payment_order_ref, payment_ref, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT ON CONSTRAINT `+numberConstraint+` DO NOTHING`,
		uuid.UUID(p.ID), uuid.UUID(p.FarmerID), uuid.UUID(p.LandID), p.Number, p.Premium, p.Coverage, p.CropType,
		p.StartDate, p.EndDate, p.OrderRef, p.PaymentRef, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return fmt.Errorf("policy for land %s: %w", p.LandID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert policy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("policy %s: %w", p.Number, models.ErrNumberTaken)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, policyID id.PolicyID) (*models.Policy, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE id = $1`, uuid.UUID(policyID))
	return scanPolicy(row)
}

func (s *PostgresStore) FindByOrderRef(ctx context.Context, orderRef string) (*models.Policy, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE payment_order_ref = $1`, orderRef)
	return scanPolicy(row)
}

func (s *PostgresStore) ListByFarmer(ctx context.Context, farmerID id.FarmerID) ([]*models.Policy, error) {
	return s.list(ctx, `SELECT `+policyColumns+` FROM policies WHERE farmer_id = $1 ORDER BY created_at DESC`,
		uuid.UUID(farmerID))
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status) ([]*models.Policy, error) {
	return s.list(ctx, `SELECT `+policyColumns+` FROM policies WHERE status = $1 ORDER BY created_at DESC`,
		string(status))
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Policy, error) {
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()
	var out []*models.Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkPaid(ctx context.Context, policyID id.PolicyID, paymentRef string, now time.Time) (*models.Policy, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx, `
		UPDATE policies SET status = 'paid', payment_ref = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING `+policyColumns,
		uuid.UUID(policyID), paymentRef, now,
	)
	return s.afterConditional(ctx, policyID, row)
}

// Transition is a compare-and-set on status. Concurrent callers racing the
// same from-state see exactly one success.
func (s *PostgresStore) Transition(ctx context.Context, policyID id.PolicyID, from []models.Status, to models.Status, now time.Time) (*models.Policy, error) {
	fromRaw := make([]string, len(from))
	for i, st := range from {
		fromRaw[i] = string(st)
	}
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx, `
		UPDATE policies SET status = $2, updated_at = $3
		WHERE id = $1 AND status = ANY($4)
		RETURNING `+policyColumns,
		uuid.UUID(policyID), string(to), now, pq.Array(fromRaw),
	)
	return s.afterConditional(ctx, policyID, row)
}

// afterConditional distinguishes a missing policy from one in the wrong
// state when a conditional update matched no row.
func (s *PostgresStore) afterConditional(ctx context.Context, policyID id.PolicyID, row *sql.Row) (*models.Policy, error) {
	p, err := scanPolicy(row)
	if err == nil || !errors.Is(err, sentinel.ErrNotFound) {
		return p, err
	}
	var exists bool
	if err := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM policies WHERE id = $1)`, uuid.UUID(policyID),
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check policy: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("policy %s: %w", policyID, sentinel.ErrNotFound)
	}
	return nil, fmt.Errorf("policy %s: %w", policyID, sentinel.ErrInvalidState)
}

func (s *PostgresStore) ExpireDue(ctx context.Context, now time.Time) ([]*models.Policy, error) {
	return s.list(ctx, `
		UPDATE policies SET status = 'expired', updated_at = $2
		WHERE status = 'active' AND end_date < $1
		RETURNING `+policyColumns,
		models.DateOf(now), now)
}

func (s *PostgresStore) Summary(ctx context.Context) (models.Summary, error) {
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx,
		`SELECT status, count(*), COALESCE(sum(coverage), 0) FROM policies GROUP BY status`)
	if err != nil {
		return models.Summary{}, fmt.Errorf("summarize policies: %w", err)
	}
	defer rows.Close()
	sum := models.Summary{ByStatus: make(map[models.Status]int), ActiveCoverage: decimal.Zero}
	for rows.Next() {
		var (
			status   string
			count    int
			coverage decimal.Decimal
		)
		if err := rows.Scan(&status, &count, &coverage); err != nil {
			return models.Summary{}, fmt.Errorf("scan policy summary: %w", err)
		}
		sum.ByStatus[models.Status(status)] = count
		if models.Status(status) == models.StatusActive {
			sum.ActiveCoverage = coverage
		}
	}
	return sum, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row scanner) (*models.Policy, error) {
	var (
		p        models.Policy
		rawID    uuid.UUID
		farmerID uuid.UUID
		landID   uuid.UUID
		status   string
	)
	err := row.Scan(&rawID, &farmerID, &landID, &p.Number, &p.Premium, &p.Coverage, &p.CropType,
		&p.StartDate, &p.EndDate, &p.OrderRef, &p.PaymentRef, &status, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("policy: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan policy: %w", err)
	}
	p.ID = id.PolicyID(rawID)
	p.FarmerID = id.FarmerID(farmerID)
	p.LandID = id.LandID(landID)
	p.Status = models.Status(status)
	return &p, nil
}
