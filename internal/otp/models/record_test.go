package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
)

func TestNewRecord(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	phone := id.Phone("9876543210")

	t.Run("valid record expires after ttl", func(t *testing.T) {
		rec, err := NewRecord(id.OTPID(uuid.New()), phone, "042137", now, 5*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, now.Add(5*time.Minute), rec.ExpiresAt)
		assert.False(t, rec.Used)
	})

	for name, code := range map[string]string{
		"too short":  "12345",
		"too long":   "1234567",
		"non digits": "12a456",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewRecord(id.OTPID(uuid.New()), phone, code, now, time.Minute)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}

	t.Run("missing phone", func(t *testing.T) {
		_, err := NewRecord(id.OTPID(uuid.New()), "", "123456", now, time.Minute)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestRecord_ExpiryBoundary(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	rec, err := NewRecord(id.OTPID(uuid.New()), "9876543210", "123456", now, 5*time.Minute)
	require.NoError(t, err)

	assert.False(t, rec.IsExpired(rec.ExpiresAt), "the expiry instant itself is still valid")
	assert.True(t, rec.IsExpired(rec.ExpiresAt.Add(time.Nanosecond)))
	assert.True(t, rec.Matches("123456"))
	assert.False(t, rec.Matches("123457"))
}
