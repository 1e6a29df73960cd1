package auth

import (
	"testing"
	"time"

	"github.com/BradenHooton/bastion/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "token-test-secret-0123456789abcdef"

func testPrincipal() *models.Principal {
	return &models.Principal{
		ID:    "principal123",
		Email: "user@example.com",
		Role:  "user",
	}
}

func TestTokenManager_GenerateTokenPair(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)

	access, refresh, err := tm.GenerateTokenPair(testPrincipal(), "session456")
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)

	accessClaims, err := tm.ValidateToken(access)
	require.NoError(t, err)
	assert.Equal(t, "access", accessClaims.Type)
	assert.Equal(t, "principal123", accessClaims.PrincipalID)
	assert.Equal(t, "session456", accessClaims.SessionID)
	assert.Equal(t, "user@example.com", accessClaims.Email)
	assert.Equal(t, "user", accessClaims.Role)

	refreshClaims, err := tm.ValidateToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refreshClaims.Type)
	assert.Equal(t, "session456", refreshClaims.SessionID)
}

func TestTokenManager_ValidateToken_WrongSecret(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)
	other := NewTokenManager("a-completely-different-secret-value", 15*time.Minute, 7*24*time.Hour)

	access, _, err := tm.GenerateTokenPair(testPrincipal(), "session456")
	require.NoError(t, err)

	_, err = other.ValidateToken(access)
	assert.Error(t, err)
}

func TestTokenManager_ValidateToken_Expired(t *testing.T) {
	tm := NewTokenManager(testSecret, -time.Minute, 7*24*time.Hour)

	access, _, err := tm.GenerateTokenPair(testPrincipal(), "session456")
	require.NoError(t, err)

	_, err = tm.ValidateToken(access)
	assert.Error(t, err)
}

func TestTokenManager_ValidateToken_Garbage(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute, 7*24*time.Hour)

	_, err := tm.ValidateToken("not.a.jwt")
	assert.Error(t, err)
}
