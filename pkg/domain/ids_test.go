package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "farmshield/pkg/domain-errors"
)

// IDs must be valid, non-empty, non-nil UUIDs. Parsing is the trust boundary
// for every path parameter in the HTTP layer.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParsePolicyID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParsePolicyID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParsePolicyID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParsePolicyID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, PolicyID(validUUID), id)
	})
}

func TestParseID_HostileInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE policies;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClaimID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()

	parsers := map[string]func(string) error{
		"farmer":       func(s string) error { _, err := ParseFarmerID(s); return err },
		"official":     func(s string) error { _, err := ParseOfficialID(s); return err },
		"session":      func(s string) error { _, err := ParseSessionID(s); return err },
		"land":         func(s string) error { _, err := ParseLandID(s); return err },
		"policy":       func(s string) error { _, err := ParsePolicyID(s); return err },
		"verification": func(s string) error { _, err := ParseVerificationID(s); return err },
		"claim":        func(s string) error { _, err := ParseClaimID(s); return err },
		"sensor":       func(s string) error { _, err := ParseSensorID(s); return err },
		"notification": func(s string) error { _, err := ParseNotificationID(s); return err },
	}

	for name, parse := range parsers {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, parse(validUUID))
			for _, bad := range []string{"", "invalid", uuid.Nil.String()} {
				assert.Error(t, parse(bad), "input %q", bad)
			}
		})
	}
}

func TestIDMarshalText(t *testing.T) {
	raw := uuid.New()
	text, err := PolicyID(raw).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, raw.String(), string(text))
}
