package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("access", "refresh", time.Minute, time.Hour)
	m.Issuer = "accounts"

	tok, exp, err := m.GenerateAccessToken("acc-1", "sid-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	claims, err := m.ParseAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "sid-1", claims.SessionID)
	assert.Equal(t, "accounts", claims.Issuer)

	_, err = m.ParseRefreshToken(tok)
	assert.Error(t, err)
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("access", "refresh", -time.Minute, time.Hour)
	tok, _, err := m.GenerateAccessToken("acc-1", "sid-1")
	require.NoError(t, err)
	_, err = m.ParseAccessToken(tok)
	assert.Error(t, err)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	hash, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.True(t, h.Verify(hash, "s3cret"))
	assert.False(t, h.Verify(hash, "nope"))
	assert.False(t, h.Verify("!unusable", "s3cret"))

	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(99).Cost)
}
