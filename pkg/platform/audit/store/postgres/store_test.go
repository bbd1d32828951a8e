package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "farmshield/pkg/platform/audit"
)

func TestAppend_WritesFarmerAggregate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	farmerID := uuid.NewString()
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(sqlmock.AnyArg(), "farmer", farmerID, "claim_filed", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = New(db).Append(context.Background(), audit.Event{
		Timestamp: time.Now(),
		FarmerID:  farmerID,
		Action:    string(audit.EventClaimFiled),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelayBatch_MarksPublishedOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	entryID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, aggregate_id, event_type, payload FROM outbox").
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload"}).
			AddRow(entryID.String(), "farmer-1", "policy_applied", []byte(`{"action":"policy_applied"}`)))
	mock.ExpectExec("UPDATE outbox SET published_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var published []OutboxEntry
	n, err := New(db).RelayBatch(context.Background(), 50, func(_ context.Context, entries []OutboxEntry) error {
		published = entries
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, published, 1)
	assert.Equal(t, "policy_applied", published[0].EventType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelayBatch_PublishFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, aggregate_id, event_type, payload FROM outbox").
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload"}).
			AddRow(uuid.NewString(), "farmer-1", "claim_filed", []byte(`{}`)))
	mock.ExpectRollback()

	_, err = New(db).RelayBatch(context.Background(), 10, func(context.Context, []OutboxEntry) error {
		return errors.New("broker down")
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
