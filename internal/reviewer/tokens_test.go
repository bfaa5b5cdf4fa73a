package reviewer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "kycgate/pkg/domain-errors"
)

var tokenService = NewTokenService("test-signing-key", "test-issuer")

func Test_GenerateAndValidate(t *testing.T) {
	token, err := tokenService.Generate("reviewer-42", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tokenService.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "reviewer-42", claims.ReviewerID)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_Validate_InvalidToken(t *testing.T) {
	_, err := tokenService.Validate("invalid-token-string")
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "invalid token"))
}

func Test_Validate_ExpiredToken(t *testing.T) {
	token, err := tokenService.Generate("reviewer-42", -time.Hour)
	require.NoError(t, err)

	_, err = tokenService.Validate(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
}

func Test_Validate_WrongKey(t *testing.T) {
	other := NewTokenService("another-key", "test-issuer")
	token, err := other.Generate("reviewer-42", time.Hour)
	require.NoError(t, err)

	_, err = tokenService.Validate(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_Validate_MissingReviewerID(t *testing.T) {
	token, err := tokenService.Generate("", time.Hour)
	require.NoError(t, err)

	_, err = tokenService.Validate(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
