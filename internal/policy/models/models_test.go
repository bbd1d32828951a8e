package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmshield/internal/platform/config"
	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func defaultPricer(t *testing.T) *Pricer {
	t.Helper()
	p, err := NewPricer(config.DefaultCropRates(), decimal.NewFromInt(100), decimal.NewFromInt(10))
	require.NoError(t, err)
	return p
}

func TestPricer_Quote(t *testing.T) {
	p := defaultPricer(t)
	cases := []struct {
		crop     string
		area     string
		premium  string
		coverage string
	}{
		{"WHEAT", "2.5", "375.00", "10000.00"},
		{"cotton", "1.33", "665.00", "7980.00"},
		{" Rice ", "0.333", "66.60", "1498.50"},
		{"SUGARCANE", "10", "5000.00", "80000.00"},
	}
	for _, tc := range cases {
		t.Run(tc.crop+"/"+tc.area, func(t *testing.T) {
			q, err := p.Quote(tc.crop, d(tc.area))
			require.NoError(t, err)
			assert.True(t, q.Premium.Equal(d(tc.premium)), "premium %s", q.Premium)
			assert.True(t, q.Coverage.Equal(d(tc.coverage)), "coverage %s", q.Coverage)
		})
	}
}

func TestPricer_RoundsHalfUp(t *testing.T) {
	p, err := NewPricer([]config.CropRate{{Name: "TEST", PremiumRate: d("1"), MaxCoverage: d("1")}},
		decimal.NewFromInt(1), decimal.NewFromInt(8))
	require.NoError(t, err)
	q, err := p.Quote("test", d("0.125"))
	require.NoError(t, err)
	assert.Equal(t, "0.13", q.Premium.StringFixed(2))
	assert.Equal(t, "0.02", q.Coverage.StringFixed(2))
}

func TestPricer_UnknownCrop(t *testing.T) {
	_, err := defaultPricer(t).Quote("QUINOA", d("1"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestNewPricer_ZeroDivisor(t *testing.T) {
	_, err := NewPricer(config.DefaultCropRates(), decimal.NewFromInt(100), decimal.Zero)
	assert.Error(t, err)
}

func TestNewPolicy_ValidityWindow(t *testing.T) {
	now := time.Date(2026, 8, 31, 17, 45, 0, 0, time.UTC)
	p, err := NewPolicy(NewPolicyParams{
		ID:             id.PolicyID(uuid.New()),
		FarmerID:       id.FarmerID(uuid.New()),
		LandID:         id.LandID(uuid.New()),
		Number:         "CI-12345678-0001",
		Quote:          Quote{Crop: "WHEAT", Premium: d("150"), Coverage: d("4000")},
		OrderRef:       "order_0123456789abcd",
		Now:            now,
		ValidityMonths: 6,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), p.StartDate)
	assert.Equal(t, time.Date(2027, 3, 3, 0, 0, 0, 0, time.UTC), p.EndDate)

	assert.False(t, p.Lapsed(p.EndDate.Add(23*time.Hour)))
	assert.True(t, p.Lapsed(p.EndDate.AddDate(0, 0, 1)))
}

func TestNewLand_NormalizesKhasra(t *testing.T) {
	l, err := NewLand(id.LandID(uuid.New()), id.FarmerID(uuid.New()), " 12/3a ", d("1.5"), "wheat", 23.1, 77.4, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "12/3A", l.KhasraNumber)
	assert.Equal(t, "WHEAT", l.CropType)

	_, err = NewLand(id.LandID(uuid.New()), id.FarmerID(uuid.New()), "12/3", decimal.Zero, "wheat", 0, 0, time.Now())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestApplyRequest_Validate(t *testing.T) {
	lat, lon := 23.25, 77.41
	badLat := 91.0
	area := d("2")
	neg := d("-1")
	cases := map[string]struct {
		req   ApplyRequest
		valid bool
	}{
		"ok":             {ApplyRequest{KhasraNumber: "45/2", AreaAcres: &area, CropType: "WHEAT", Latitude: &lat, Longitude: &lon}, true},
		"missing khasra": {ApplyRequest{AreaAcres: &area, CropType: "WHEAT", Latitude: &lat, Longitude: &lon}, false},
		"negative area":  {ApplyRequest{KhasraNumber: "45/2", AreaAcres: &neg, CropType: "WHEAT", Latitude: &lat, Longitude: &lon}, false},
		"missing gps":    {ApplyRequest{KhasraNumber: "45/2", AreaAcres: &area, CropType: "WHEAT"}, false},
		"latitude range": {ApplyRequest{KhasraNumber: "45/2", AreaAcres: &area, CropType: "WHEAT", Latitude: &badLat, Longitude: &lon}, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}
}
