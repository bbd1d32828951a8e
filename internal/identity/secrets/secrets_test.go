package secrets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "farmshield/pkg/domain-errors"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("patwari@123")
	require.NoError(t, err)

	assert.NoError(t, Verify("patwari@123", hash))
	assert.True(t, dErrors.HasCode(Verify("wrong", hash), dErrors.CodeUnauthorized))
}

func TestHashRejectsEmptyAndOversized(t *testing.T) {
	_, err := Hash("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = Hash(strings.Repeat("x", 100))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestGenerateAndFingerprint(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, Fingerprint(a), Fingerprint(a))
	assert.Len(t, Fingerprint(a), 64)
}
