package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedTokens(t *testing.T) {
	const secret = "s3cret"
	userID := uuid.New()

	pair, err := GenerateTokenPair(secret, userID, time.Minute, time.Hour)
	require.NoError(t, err)

	got, err := ParseToken(secret, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	got, err = ParseTypedToken(secret, TokenRefresh, pair.Refresh)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = ParseToken(secret, pair.Refresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	_, err = ParseToken("other-secret", pair.Access)
	assert.Error(t, err)

	expired, err := GenerateTypedToken(secret, TokenPasswordReset, userID, -time.Minute)
	require.NoError(t, err)
	_, err = ParseTypedToken(secret, TokenPasswordReset, expired)
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
}
