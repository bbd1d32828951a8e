package land

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmshield/internal/policy/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
)

func newLand(t *testing.T, khasra string) *models.Land {
	t.Helper()
	l, err := models.NewLand(id.LandID(uuid.New()), id.FarmerID(uuid.New()), khasra,
		decimal.RequireFromString("1.25"), "WHEAT", 23.2599, 77.4126, time.Now())
	require.NoError(t, err)
	return l
}

func TestInMemory_KhasraIsGloballyUnique(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newLand(t, "101/4")))

	err := s.Create(ctx, newLand(t, "101/4"))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestInMemory_SetSensorOnce(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	l := newLand(t, "7/1")
	require.NoError(t, s.Create(ctx, l))

	first := id.SensorID(uuid.New())
	require.NoError(t, s.SetSensor(ctx, l.ID, first))
	assert.ErrorIs(t, s.SetSensor(ctx, l.ID, id.SensorID(uuid.New())), sentinel.ErrInvalidState)
	assert.ErrorIs(t, s.SetSensor(ctx, id.LandID(uuid.New()), first), sentinel.ErrNotFound)

	got, err := s.FindByID(ctx, l.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SensorID)
	assert.Equal(t, first, *got.SensorID)
}

func TestPostgresCreate_KhasraViolationIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lands")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_lands_khasra"})

	err = NewPostgres(db).Create(context.Background(), newLand(t, "101/4"))
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSetSensor_AlreadySetIsInvalidState(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	landID := id.LandID(uuid.New())
	mock.ExpectExec(regexp.QuoteMeta("UPDATE lands SET sensor_id = $2 WHERE id = $1 AND sensor_id IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(uuid.UUID(landID)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err = NewPostgres(db).SetSensor(context.Background(), landID, id.SensorID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByID_Missing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM lands WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = NewPostgres(db).FindByID(context.Background(), id.LandID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
