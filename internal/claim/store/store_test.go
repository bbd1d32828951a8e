package store

import (
	"context"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"farmshield/internal/claim/models"
	id "farmshield/pkg/domain"
	"farmshield/pkg/platform/sentinel"
)

type InMemoryClaimSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestInMemoryClaimSuite(t *testing.T) {
	suite.Run(t, new(InMemoryClaimSuite))
}

func (s *InMemoryClaimSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
}

func (s *InMemoryClaimSuite) newClaim(policy id.PolicyID, farmer id.FarmerID, filed time.Time) *models.Claim {
	c, err := models.NewProcessing(models.NewClaimParams{
		ID:           id.ClaimID(uuid.New()),
		PolicyID:     policy,
		PolicyNumber: "POL-1",
		FarmerID:     farmer,
		Images:       []models.Image{{Path: "claims/a.jpg"}, {Path: "claims/b.jpg"}},
		Now:          filed,
	})
	s.Require().NoError(err)
	return c
}

func (s *InMemoryClaimSuite) assessment(damage string) *models.Assessment {
	return &models.Assessment{DamagePercent: decimal.RequireFromString(damage), Finding: "Leaf blight", ModelVersion: "1.0.0", CreatedAt: s.now}
}

func (s *InMemoryClaimSuite) TestCreate_OneClaimPerPolicy() {
	policy := id.PolicyID(uuid.New())
	s.Require().NoError(s.store.Create(s.ctx, s.newClaim(policy, id.FarmerID(uuid.New()), s.now)))
	err := s.store.Create(s.ctx, s.newClaim(policy, id.FarmerID(uuid.New()), s.now))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *InMemoryClaimSuite) TestCreate_ConcurrentSamePolicy() {
	policy := id.PolicyID(uuid.New())
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.store.Create(s.ctx, s.newClaim(policy, id.FarmerID(uuid.New()), s.now)) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}

func (s *InMemoryClaimSuite) TestAdjudicate() {
	c := s.newClaim(id.PolicyID(uuid.New()), id.FarmerID(uuid.New()), s.now)
	s.Require().NoError(s.store.Create(s.ctx, c))

	decided := models.Decision{Status: models.StatusApproved, Payout: decimal.RequireFromString("30000")}
	got, err := s.store.Adjudicate(s.ctx, c.ID, decided, s.assessment("60"), s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, got.Status)
	s.Require().NotNil(got.Assessment)
	s.Equal("Leaf blight", got.Finding)

	_, err = s.store.Adjudicate(s.ctx, c.ID, decided, s.assessment("60"), s.now)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	_, err = s.store.Adjudicate(s.ctx, id.ClaimID(uuid.New()), decided, s.assessment("60"), s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryClaimSuite) TestFindByID_ReturnsCopy() {
	c := s.newClaim(id.PolicyID(uuid.New()), id.FarmerID(uuid.New()), s.now)
	s.Require().NoError(s.store.Create(s.ctx, c))

	got, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	got.Images[0].Path = "mutated"

	again, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal("claims/a.jpg", again.Images[0].Path)
}

func (s *InMemoryClaimSuite) TestListByFarmer_NewestFirst() {
	farmer := id.FarmerID(uuid.New())
	older := s.newClaim(id.PolicyID(uuid.New()), farmer, s.now)
	newer := s.newClaim(id.PolicyID(uuid.New()), farmer, s.now.Add(time.Hour))
	other := s.newClaim(id.PolicyID(uuid.New()), id.FarmerID(uuid.New()), s.now)
	for _, c := range []*models.Claim{older, newer, other} {
		s.Require().NoError(s.store.Create(s.ctx, c))
	}

	claims, err := s.store.ListByFarmer(s.ctx, farmer)
	s.Require().NoError(err)
	s.Require().Len(claims, 2)
	s.Equal(newer.ID, claims[0].ID)
	s.Equal(older.ID, claims[1].ID)

	all, err := s.store.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 3)
}

func (s *InMemoryClaimSuite) TestCounts() {
	approved := s.newClaim(id.PolicyID(uuid.New()), id.FarmerID(uuid.New()), s.now)
	rejected := s.newClaim(id.PolicyID(uuid.New()), id.FarmerID(uuid.New()), s.now)
	pending := s.newClaim(id.PolicyID(uuid.New()), id.FarmerID(uuid.New()), s.now)
	for _, c := range []*models.Claim{approved, rejected, pending} {
		s.Require().NoError(s.store.Create(s.ctx, c))
	}
	_, err := s.store.Adjudicate(s.ctx, approved.ID, models.Decision{Status: models.StatusApproved, Payout: decimal.NewFromInt(1)}, s.assessment("80"), s.now)
	s.Require().NoError(err)
	_, err = s.store.Adjudicate(s.ctx, rejected.ID, models.Decision{Status: models.StatusRejected, Payout: decimal.Zero}, s.assessment("10"), s.now)
	s.Require().NoError(err)

	counts, err := s.store.Counts(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.Counts{Total: 3, Processing: 1, Approved: 1, Rejected: 1}, counts)
}

var claimCols = []string{"id", "policy_id", "policy_number", "farmer_id", "sensor_id", "latitude", "longitude",
	"distance_meters", "status", "damage_percent", "payout", "finding", "filed_at", "processed_at"}

func TestPostgresCreate_DuplicatePolicyIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO claims")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: uniqueClaimPerPolicy})

	c, err := models.NewProcessing(models.NewClaimParams{
		ID:       id.ClaimID(uuid.New()),
		PolicyID: id.PolicyID(uuid.New()),
		FarmerID: id.FarmerID(uuid.New()),
		Images:   []models.Image{{Path: "claims/a.jpg"}},
		Now:      time.Now(),
	})
	require.NoError(t, err)
	assert.ErrorIs(t, NewPostgres(db).Create(context.Background(), c), sentinel.ErrConflict)
}

func TestPostgresAdjudicate_AlreadyDecided(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	claimID := id.ClaimID(uuid.New())
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE claims")).WillReturnRows(sqlmock.NewRows(claimCols))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM claims WHERE id = $1)")).
		WithArgs(uuid.UUID(claimID)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err = NewPostgres(db).Adjudicate(context.Background(), claimID,
		models.Decision{Status: models.StatusRejected, Payout: decimal.Zero},
		&models.Assessment{DamagePercent: decimal.NewFromInt(5)}, time.Now())
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByID_Hydrates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	claimID := uuid.New()
	filed := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM claims WHERE id = $1")).
		WillReturnRows(sqlmock.NewRows(claimCols).AddRow(
			claimID.String(), uuid.NewString(), "POL-1", uuid.NewString(), nil, 23.1, 77.4,
			12.5, "approved", "61.25", "30625.00", "Leaf blight", filed, filed.Add(time.Minute)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM claim_images")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "claim_id", "path", "latitude", "longitude", "created_at"}).
			AddRow(uuid.NewString(), claimID.String(), "claims/a.jpg", 23.1, 77.4, filed))
	mock.ExpectQuery(regexp.QuoteMeta("FROM assessments")).
		WillReturnRows(sqlmock.NewRows([]string{"claim_id", "damage_percent", "finding", "model_version", "details", "fallback", "created_at"}).
			AddRow(claimID.String(), "61.25", "Leaf blight", "1.0.0", []byte(`{"confidence":0.9}`), false, filed))

	c, err := NewPostgres(db).FindByID(context.Background(), id.ClaimID(claimID))
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, c.Status)
	require.NotNil(t, c.DamagePercent)
	assert.True(t, c.DamagePercent.Equal(decimal.RequireFromString("61.25")))
	assert.Nil(t, c.SensorID)
	require.Len(t, c.Images, 1)
	require.NotNil(t, c.Assessment)
	assert.Equal(t, 0.9, c.Assessment.Details["confidence"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindByID_Missing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM claims WHERE id = $1")).WillReturnRows(sqlmock.NewRows(claimCols))
	_, err = NewPostgres(db).FindByID(context.Background(), id.ClaimID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT count").
		WillReturnRows(sqlmock.NewRows([]string{"total", "processing", "approved", "rejected"}).AddRow(6, 1, 3, 2))
	counts, err := NewPostgres(db).Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Counts{Total: 6, Processing: 1, Approved: 3, Rejected: 2}, counts)
}
