package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joborchestrator/internal/authstore"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)
	assert.True(t, CheckPassword("correct horse battery staple", hash))
	assert.False(t, CheckPassword("wrong password", hash))
}

func TestGenerateAndValidateToken(t *testing.T) {
	s := NewService("test-secret")
	user := authstore.User{ID: 1, Username: "admin"}

	token, err := s.GenerateToken(user)
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Username, claims.Username)
}

func TestValidateToken_WrongSecretRejected(t *testing.T) {
	s := NewService("secret-a")
	other := NewService("secret-b")
	user := authstore.User{ID: 1, Username: "admin"}

	token, err := s.GenerateToken(user)
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_GarbageRejected(t *testing.T) {
	s := NewService("secret")
	_, err := s.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateLongLivedToken_HasYearExpiry(t *testing.T) {
	s := NewService("secret")
	user := authstore.User{ID: 2, Username: "admin"}

	token, err := s.GenerateLongLivedToken(user)
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(LongLivedTokenTTL), claims.ExpiresAt.Time, time.Minute)
}
