package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "5m0s", cfg.OTP.TTL.String())
	assert.Empty(t, cfg.OTP.FixedCode)
	assert.True(t, cfg.Policy.PremiumMultiplier.Equal(decimal.NewFromInt(100)))
	assert.True(t, cfg.Policy.CoverageDivisor.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 6, cfg.Policy.ValidityMonths)
	assert.True(t, cfg.Claims.ApprovalThreshold.Equal(decimal.NewFromInt(75)))
	assert.InDelta(t, 500.0, cfg.Claims.GeofenceTolerance, 0.001)
	assert.Equal(t, GeofenceWarn, cfg.Claims.GeofenceMode)
	assert.Equal(t, 4, cfg.Claims.MinImages)
	assert.Equal(t, []string{"active"}, cfg.Claims.AllowedPolicyStatuses)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 10, cfg.RateLimit.AuthPerMinute)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GEOFENCE_MODE", "strict")
	t.Setenv("OTP_FIXED_CODE", "123456")
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092,b1:9092")
	t.Setenv("CLAIM_ALLOWED_POLICY_STATUSES", "Active, EXPIRED")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_AUTH_PER_MINUTE", "3")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, GeofenceStrict, cfg.Claims.GeofenceMode)
	assert.Equal(t, "123456", cfg.OTP.FixedCode)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"active", "expired"}, cfg.Claims.AllowedPolicyStatuses)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 3, cfg.RateLimit.AuthPerMinute)
}

func TestValidate(t *testing.T) {
	t.Run("fixed OTP code is refused in production", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("APP_ENV", "production")
		t.Setenv("OTP_FIXED_CODE", "123456")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OTP_FIXED_CODE")
	})

	t.Run("unknown geofence mode", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("GEOFENCE_MODE", "ignore")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("negative rate limit budget", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("RATE_LIMIT_READ_PER_MINUTE", "-1")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("object storage requires a bucket", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("IMAGE_STORE", "s3")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "IMAGE_STORE_BUCKET")
	})
}

func TestParseCropRates(t *testing.T) {
	doc := []byte(`
crops:
  - name: wheat
    season: Rabi
    premium_rate: "1.5"
    max_coverage: "40000"
  - name: Paddy
    premium_rate: "2"
    max_coverage: "45000.50"
`)
	rates, err := ParseCropRates(doc)
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "WHEAT", rates[0].Name)
	assert.Equal(t, "PADDY", rates[1].Name)
	assert.Equal(t, "45000.5", rates[1].MaxCoverage.String())

	_, err = ParseCropRates([]byte("crops:\n  - name: x\n    premium_rate: \"-1\"\n    max_coverage: \"1\"\n"))
	assert.Error(t, err)

	_, err = ParseCropRates([]byte("crops:\n  - {name: a, premium_rate: '1', max_coverage: '1'}\n  - {name: A, premium_rate: '1', max_coverage: '1'}\n"))
	assert.ErrorContains(t, err, "duplicate")
}
