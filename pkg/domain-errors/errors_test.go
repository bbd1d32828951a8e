package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeConflict, "policy already claimed"))
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "failed to load policy")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load policy: connection reset", err.Error())
	assert.Equal(t, CodeInternal, CodeOf(err))
}

func TestErrorsIsComparesCode(t *testing.T) {
	err := New(CodeOTPMismatch, "invalid code")
	require.ErrorIs(t, err, New(CodeOTPMismatch, ""))
	assert.NotErrorIs(t, err, New(CodeExpired, ""))
}
