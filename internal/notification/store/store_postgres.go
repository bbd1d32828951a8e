package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"farmshield/internal/notification/models"
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

const notificationColumns = `id, farmer_id, title, message, category, read, sent_at`

func (s *PostgresStore) Create(ctx context.Context, n *models.Notification) error {
	_, err := tx.Execer(ctx, s.db).ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.UUID(n.ID), uuid.UUID(n.FarmerID), n.Title, n.Message, string(n.Category), n.Read, n.SentAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return fmt.Errorf("notification %s: %w", n.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByFarmer(ctx context.Context, farmerID id.FarmerID, limit int) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE farmer_id = $1 ORDER BY sent_at DESC`
	args := []any{uuid.UUID(farmerID)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := tx.Execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()
	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountUnread(ctx context.Context, farmerID id.FarmerID) (int, error) {
	var count int
	err := tx.Execer(ctx, s.db).QueryRowContext(ctx,
		`SELECT count(*) FROM notifications WHERE farmer_id = $1 AND NOT read`, uuid.UUID(farmerID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead is scoped by farmer so a foreign notification matches no row and
// reads as not found.
func (s *PostgresStore) MarkRead(ctx context.Context, farmerID id.FarmerID, notificationID id.NotificationID) (*models.Notification, error) {
	row := tx.Execer(ctx, s.db).QueryRowContext(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE id = $1 AND farmer_id = $2
		RETURNING `+notificationColumns,
		uuid.UUID(notificationID), uuid.UUID(farmerID),
	)
	return scanNotification(row)
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, farmerID id.FarmerID) (int, error) {
	res, err := tx.Execer(ctx, s.db).ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE farmer_id = $1 AND NOT read`, uuid.UUID(farmerID))
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (*models.Notification, error) {
	var (
		n        models.Notification
		rawID    uuid.UUID
		farmerID uuid.UUID
		category string
	)
	err := row.Scan(&rawID, &farmerID, &n.Title, &n.Message, &category, &n.Read, &n.SentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	n.ID = id.NotificationID(rawID)
	n.FarmerID = id.FarmerID(farmerID)
	n.Category = id.NotificationCategory(category)
	return &n, nil
}
