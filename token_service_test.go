package access_test

import (
	"testing"
	"time"

	access "github.com/butlerian/go-access"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService(t *testing.T) {
	signingKey := []byte("token-service-test-secret")
	user := &access.User{
		ID:    uuid.New(),
		Email: "person@example.com",
	}

	t.Run("generate and validate round trip", func(t *testing.T) {
		service := access.NewTokenService(signingKey, 1, "butlerian", jwt.ClaimStrings{"butlerian-web"}, testLogger{})

		raw, err := service.Generate(user)
		require.NoError(t, err)
		require.NotEmpty(t, raw)

		claims, err := service.Validate(raw)
		require.NoError(t, err)

		assert.Equal(t, user.ID.String(), claims.GetUserID())
		assert.Equal(t, user.Email, claims.Email)
		assert.Equal(t, "butlerian", claims.Issuer)
		assert.WithinDuration(t, time.Now().Add(time.Hour), claims.GetExpiryTime(), 5*time.Second)
	})

	t.Run("rejects nil user", func(t *testing.T) {
		service := access.NewTokenService(signingKey, 1, "butlerian", nil, testLogger{})

		_, err := service.Generate(nil)
		require.Error(t, err)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		service := access.NewTokenService(signingKey, -1, "butlerian", nil, testLogger{})

		raw, err := service.Generate(user)
		require.NoError(t, err)

		_, err = service.Validate(raw)
		require.Error(t, err)
		assert.ErrorIs(t, err, access.ErrTokenExpired)
	})

	t.Run("rejects malformed token", func(t *testing.T) {
		service := access.NewTokenService(signingKey, 1, "butlerian", nil, testLogger{})

		_, err := service.Validate("not.a.token")
		require.Error(t, err)
		assert.Contains(t, err.Error(), access.ErrTokenMalformed.Message)
	})

	t.Run("rejects token signed with another key", func(t *testing.T) {
		other := access.NewTokenService([]byte("other-secret"), 1, "butlerian", nil, testLogger{})
		raw, err := other.Generate(user)
		require.NoError(t, err)

		service := access.NewTokenService(signingKey, 1, "butlerian", nil, testLogger{})
		_, err = service.Validate(raw)
		require.Error(t, err)
	})

	t.Run("rejects wrong issuer", func(t *testing.T) {
		other := access.NewTokenService(signingKey, 1, "someone-else", nil, testLogger{})
		raw, err := other.Generate(user)
		require.NoError(t, err)

		service := access.NewTokenService(signingKey, 1, "butlerian", nil, testLogger{})
		_, err = service.Validate(raw)
		require.Error(t, err)
	})
}
