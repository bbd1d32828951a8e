package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "farmshield/pkg/domain-errors"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Phone
	}{
		{"plain ten digits", "9876543210", "9876543210"},
		{"country code with plus and spaces", "+91 98765 43210", "9876543210"},
		{"country code without plus", "919876543210", "9876543210"},
		{"dashes and parentheses", "(987) 654-3210", "9876543210"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("rejects short numbers", func(t *testing.T) {
		_, err := NormalizePhone("12345")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("twelve digits without 91 prefix are rejected", func(t *testing.T) {
		_, err := NormalizePhone("449876543210")
		require.Error(t, err)
	})
}

func TestPhoneMasked(t *testing.T) {
	assert.Equal(t, "******3210", Phone("9876543210").Masked())
}

func TestNotificationCategory(t *testing.T) {
	c, err := ParseNotificationCategory("claim")
	require.NoError(t, err)
	assert.True(t, c.SendsSMS())
	assert.False(t, NotificationVerification.SendsSMS())

	_, err = ParseNotificationCategory("marketing")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
