package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "farmshield/pkg/domain"
	dErrors "farmshield/pkg/domain-errors"
	"farmshield/pkg/requestcontext"
)

var jwtService = NewJWTService("test-signing-key", "test-issuer", "farmshield-api")

func farmerCaller() requestcontext.Caller {
	return requestcontext.Caller{
		SubjectID: uuid.New(),
		SessionID: id.SessionID(uuid.New()),
		Role:      requestcontext.RoleFarmer,
	}
}

func Test_GenerateAccessToken(t *testing.T) {
	caller := farmerCaller()
	token, jti, err := jwtService.GenerateAccessToken(caller, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, caller, claims.Principal)
	assert.Equal(t, jti, claims.JTI)
}

func Test_GenerateAccessToken_OfficialCarriesArea(t *testing.T) {
	caller := requestcontext.Caller{
		SubjectID: uuid.New(),
		SessionID: id.SessionID(uuid.New()),
		Role:      requestcontext.RoleOfficial,
		Area:      "Sehore",
	}
	token, _, err := jwtService.GenerateAccessToken(caller, time.Hour)
	require.NoError(t, err)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "Sehore", claims.Principal.Area)
	assert.Equal(t, requestcontext.RoleOfficial, claims.Principal.Role)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, _, err := jwtService.GenerateAccessToken(farmerCaller(), -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewJWTService("another-key", "test-issuer", "farmshield-api")
	token, _, err := other.GenerateAccessToken(farmerCaller(), time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_RegistrationTokenIsNotAnAccessToken(t *testing.T) {
	reg, err := jwtService.GenerateRegistrationToken("9876543210", 15*time.Minute)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(reg)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

	phone, err := jwtService.ValidateRegistrationToken(reg)
	require.NoError(t, err)
	assert.Equal(t, id.Phone("9876543210"), phone)
}

func Test_AccessTokenIsNotARegistrationToken(t *testing.T) {
	access, _, err := jwtService.GenerateAccessToken(farmerCaller(), time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateRegistrationToken(access)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
