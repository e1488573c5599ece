package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "test-signing-secret"
	testIssuer   = "expopass-auth"
	testAudience = "expopass"
)

func TestService_GenerateTokens(t *testing.T) {
	svc := NewService(testSecret, testIssuer, testAudience)

	t.Run("ClaimShape", func(t *testing.T) {
		pair, err := svc.GenerateTokens("user-123", "alice@example.com", "attendee", true)
		require.NoError(t, err)

		claims, err := svc.ParseAccessToken(pair.AccessToken.Token)
		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.Subject)
		assert.Equal(t, "alice@example.com", claims.Email)
		assert.Equal(t, "attendee", claims.Role)
		assert.Equal(t, testIssuer, claims.Issuer)
		assert.NotEmpty(t, claims.ID)
	})

	t.Run("NoRefreshWithoutRememberMe", func(t *testing.T) {
		pair, err := svc.GenerateTokens("user-123", "alice@example.com", "attendee", false)
		require.NoError(t, err)
		assert.NotEmpty(t, pair.AccessToken.Token)
		assert.Nil(t, pair.RefreshToken)
	})

	t.Run("ExpiryWindows", func(t *testing.T) {
		pair, err := svc.GenerateTokens("user-123", "alice@example.com", "attendee", true)
		require.NoError(t, err)
		require.NotNil(t, pair.RefreshToken)

		now := time.Now().UTC()
		assert.WithinDuration(t, now.Add(DefaultAccessTokenExpiry), pair.AccessToken.Expiry, 5*time.Second)
		assert.WithinDuration(t, now.Add(DefaultRefreshTokenExpiry), pair.RefreshToken.Expiry, 5*time.Second)
	})

	t.Run("RefreshExpiresAfterAccess", func(t *testing.T) {
		pair, err := svc.GenerateTokens("user-123", "alice@example.com", "attendee", true)
		require.NoError(t, err)
		require.NotNil(t, pair.RefreshToken)
		assert.True(t, pair.RefreshToken.Expiry.After(pair.AccessToken.Expiry))
	})

	t.Run("UniqueTokenIDs", func(t *testing.T) {
		first, err := svc.GenerateTokens("user-123", "alice@example.com", "attendee", false)
		require.NoError(t, err)
		second, err := svc.GenerateTokens("user-123", "alice@example.com", "attendee", false)
		require.NoError(t, err)

		a, err := svc.ParseAccessToken(first.AccessToken.Token)
		require.NoError(t, err)
		b, err := svc.ParseAccessToken(second.AccessToken.Token)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestService_TokenUseSeparation(t *testing.T) {
	svc := NewService(testSecret, testIssuer, testAudience)
	pair, err := svc.GenerateTokens("user-123", "alice@example.com", "attendee", true)
	require.NoError(t, err)
	require.NotNil(t, pair.RefreshToken)

	t.Run("RefreshTokenRejectedAsAccess", func(t *testing.T) {
		_, err := svc.ParseAccessToken(pair.RefreshToken.Token)
		assert.Error(t, err)
	})

	t.Run("AccessTokenRejectedAsRefresh", func(t *testing.T) {
		_, err := svc.ParseRefreshToken(pair.AccessToken.Token)
		assert.Error(t, err)
	})
}

func TestService_ParseAccessToken(t *testing.T) {
	svc := NewService(testSecret, testIssuer, testAudience)

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewService("different-secret", testIssuer, testAudience)
		pair, err := other.GenerateTokens("user-123", "alice@example.com", "attendee", false)
		require.NoError(t, err)

		_, err = svc.ParseAccessToken(pair.AccessToken.Token)
		assert.Error(t, err)
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		expired := NewService(testSecret, testIssuer, testAudience,
			WithAccessExpiry(-1*time.Minute))
		pair, err := expired.GenerateTokens("user-123", "alice@example.com", "attendee", false)
		require.NoError(t, err)

		_, err = svc.ParseAccessToken(pair.AccessToken.Token)
		assert.Error(t, err)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := svc.ParseAccessToken("not-a-jwt")
		assert.Error(t, err)
	})
}
