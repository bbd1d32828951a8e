package store

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"farmshield/internal/sensor/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
)

type InMemorySensorSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemorySensorSuite(t *testing.T) {
	suite.Run(t, new(InMemorySensorSuite))
}

func (s *InMemorySensorSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
}

func (s *InMemorySensorSuite) register(code string) *models.Sensor {
	sensor, err := models.NewSensor(id.SensorID(uuid.New()), code, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, sensor))
	return sensor
}

func (s *InMemorySensorSuite) TestCreate_DuplicateCode() {
	s.register("SNS-001")
	dup, err := models.NewSensor(id.SensorID(uuid.New()), "sns-001", s.now)
	s.Require().NoError(err)
	s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
}

func (s *InMemorySensorSuite) TestBind_OnlyOnce() {
	s.register("SNS-001")
	landA := id.LandID(uuid.New())
	landB := id.LandID(uuid.New())

	bound, err := s.store.Bind(s.ctx, "SNS-001", landA)
	s.Require().NoError(err)
	s.Equal(landA, *bound.LandID)

	_, err = s.store.Bind(s.ctx, "SNS-001", landB)
	s.ErrorIs(err, sentinel.ErrConflict)

	available, err := s.store.List(s.ctx, true)
	s.Require().NoError(err)
	s.Empty(available)
}

func (s *InMemorySensorSuite) TestBind_LandAlreadyHasSensor() {
	s.register("SNS-001")
	s.register("SNS-002")
	land := id.LandID(uuid.New())

	_, err := s.store.Bind(s.ctx, "SNS-001", land)
	s.Require().NoError(err)
	_, err = s.store.Bind(s.ctx, "SNS-002", land)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *InMemorySensorSuite) TestBind_UnknownCode() {
	_, err := s.store.Bind(s.ctx, "SNS-404", id.LandID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySensorSuite) TestBind_ConcurrentExactlyOneWins() {
	s.register("SNS-001")
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.Bind(s.ctx, "SNS-001", id.LandID(uuid.New())); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}

func (s *InMemorySensorSuite) TestReadings_NewestFirstAndTouchesSensor() {
	sensor := s.register("SNS-001")
	for i := range 3 {
		err := s.store.RecordReading(s.ctx, &models.Reading{
			SensorID:     sensor.ID,
			SoilMoisture: decimal.NewFromInt(int64(30 + i)),
			Humidity:     decimal.NewFromInt(60),
			Temperature:  decimal.NewFromInt(28),
			RecordedAt:   s.now.Add(time.Duration(i) * time.Minute),
		})
		s.Require().NoError(err)
	}

	readings, err := s.store.LatestReadings(s.ctx, sensor.ID, 2)
	s.Require().NoError(err)
	s.Require().Len(readings, 2)
	s.True(readings[0].SoilMoisture.Equal(decimal.NewFromInt(32)))
	s.True(readings[1].SoilMoisture.Equal(decimal.NewFromInt(31)))

	got, err := s.store.FindByCode(s.ctx, "SNS-001")
	s.Require().NoError(err)
	s.Require().NotNil(got.LastReadingAt)
	s.Equal(s.now.Add(2*time.Minute), *got.LastReadingAt)
}

func (s *InMemorySensorSuite) TestStats() {
	s.register("SNS-001")
	s.register("SNS-002")
	_, err := s.store.Bind(s.ctx, "SNS-002", id.LandID(uuid.New()))
	s.Require().NoError(err)

	stats, err := s.store.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.Stats{Total: 2, Available: 1}, stats)
}

func TestPostgresBind_AlreadyBoundIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	landID := id.LandID(uuid.New())
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE sensors SET land_id = $1")).
		WithArgs(uuid.UUID(landID), "SNS-001").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "land_id", "active", "last_reading_at", "created_at"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM sensors WHERE code = $1)")).
		WithArgs("SNS-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err = NewPostgres(db).Bind(context.Background(), "SNS-001", landID)
	assert.ErrorIs(t, err, sentinel.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBind_UnknownSensorIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE sensors SET land_id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "land_id", "active", "last_reading_at", "created_at"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = NewPostgres(db).Bind(context.Background(), "SNS-404", id.LandID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresBind_ReturnsBoundSensor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	sensorID := uuid.New()
	landID := uuid.New()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE sensors SET land_id = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "land_id", "active", "last_reading_at", "created_at"}).
			AddRow(sensorID.String(), "SNS-001", landID.String(), true, nil, created))

	sensor, err := NewPostgres(db).Bind(context.Background(), "SNS-001", id.LandID(landID))
	require.NoError(t, err)
	assert.Equal(t, id.SensorID(sensorID), sensor.ID)
	require.NotNil(t, sensor.LandID)
	assert.Equal(t, id.LandID(landID), *sensor.LandID)
	assert.Nil(t, sensor.LastReadingAt)
}

func TestPostgresRecordReading_UnknownSensor(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("WITH touched AS")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err = NewPostgres(db).RecordReading(context.Background(), &models.Reading{
		SensorID:     id.SensorID(uuid.New()),
		SoilMoisture: decimal.NewFromInt(40),
		Humidity:     decimal.NewFromInt(70),
		Temperature:  decimal.NewFromInt(31),
		RecordedAt:   time.Now(),
	})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT count").WillReturnRows(sqlmock.NewRows([]string{"total", "available"}).AddRow(5, 2))
	stats, err := NewPostgres(db).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Stats{Total: 5, Available: 2}, stats)

	mock.ExpectQuery("SELECT count").WillReturnError(errors.New("conn reset"))
	_, err = NewPostgres(db).Stats(context.Background())
	assert.Error(t, err)
}
