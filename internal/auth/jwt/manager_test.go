package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars!!"

func TestGenerateAndValidateToken(t *testing.T) {
	manager := NewManager(testSecret, "emailthing", time.Hour)

	token, err := manager.GenerateToken("user-1", "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "emailthing", claims.Issuer)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestValidateToken_Expired(t *testing.T) {
	manager := NewManager(testSecret, "emailthing", -time.Minute)

	token, err := manager.GenerateToken("user-1", "alice")
	require.NoError(t, err)

	_, err = manager.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	manager := NewManager(testSecret, "emailthing", time.Hour)
	other := NewManager("another-secret-key-also-32-chars!!!", "emailthing", time.Hour)

	token, err := manager.GenerateToken("user-1", "alice")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Garbage(t *testing.T) {
	manager := NewManager(testSecret, "emailthing", time.Hour)

	_, err := manager.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiry(t *testing.T) {
	manager := NewManager(testSecret, "emailthing", 7*24*time.Hour)
	assert.Equal(t, 7*24*time.Hour, manager.Expiry())
}
