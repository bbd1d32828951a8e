package farmer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"farmshield/internal/identity/models"
	"farmshield/internal/platform/postgres"
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

const farmerColumns = `id, phone, name, address, state, district, village,
	bank_account_holder, bank_name, bank_account_number, bank_ifsc,
	profile_image, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, f *models.Farmer) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO farmers (`+farmerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		uuid.UUID(f.ID), string(f.Phone), f.Name, f.Address, f.State, f.District, f.Village,
		f.Bank.AccountHolder, f.Bank.BankName, f.Bank.AccountNumber, f.Bank.IFSC,
		f.ProfileImage, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return fmt.Errorf("farmer phone: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert farmer: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, farmerID id.FarmerID) (*models.Farmer, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+farmerColumns+` FROM farmers WHERE id = $1`, uuid.UUID(farmerID))
	return scanFarmer(row)
}

func (s *PostgresStore) FindByPhone(ctx context.Context, phone id.Phone) (*models.Farmer, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+farmerColumns+` FROM farmers WHERE phone = $1`, string(phone))
	return scanFarmer(row)
}

func (s *PostgresStore) Update(ctx context.Context, f *models.Farmer) error {
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		UPDATE farmers SET name = $2, address = $3, state = $4, district = $5, village = $6,
			bank_account_holder = $7, bank_name = $8, bank_account_number = $9, bank_ifsc = $10,
			profile_image = $11, updated_at = $12
		WHERE id = $1`,
		uuid.UUID(f.ID), f.Name, f.Address, f.State, f.District, f.Village,
		f.Bank.AccountHolder, f.Bank.BankName, f.Bank.AccountNumber, f.Bank.IFSC,
		f.ProfileImage, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update farmer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("farmer %s: %w", f.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM farmers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count farmers: %w", err)
	}
	return n, nil
}

func scanFarmer(row *sql.Row) (*models.Farmer, error) {
	var (
		f     models.Farmer
		rawID uuid.UUID
		phone string
	)
	err := row.Scan(&rawID, &phone, &f.Name, &f.Address, &f.State, &f.District, &f.Village,
		&f.Bank.AccountHolder, &f.Bank.BankName, &f.Bank.AccountNumber, &f.Bank.IFSC,
		&f.ProfileImage, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("farmer: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan farmer: %w", err)
	}
	f.ID = id.FarmerID(rawID)
	f.Phone = id.Phone(phone)
	return &f, nil
}
