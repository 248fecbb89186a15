package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/auth"
	"github.com/straye-as/salesflow-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuthConfig() *config.AuthConfig {
	return &config.AuthConfig{
		JWTSecret: "test-signing-secret",
		Issuer:    "salesflow-test",
		Audience:  "salesflow-api",
		TokenTTL:  5,
	}
}

func TestJWTValidator_IssueAndValidate(t *testing.T) {
	v := auth.NewJWTValidator(testAuthConfig())
	userID := uuid.New()

	token, err := v.IssueToken(userID, "jane@example.com", "Jane Doe")
	require.NoError(t, err)

	identity, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.Equal(t, "jane@example.com", identity.Email)
	assert.Equal(t, "Jane Doe", identity.DisplayName)
}

func TestJWTValidator_Rejects(t *testing.T) {
	cfg := testAuthConfig()
	v := auth.NewJWTValidator(cfg)

	sign := func(t *testing.T, claims jwt.Claims, secret string) string {
		t.Helper()
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	valid := func() auth.Claims {
		return auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.New().String(),
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
	}

	t.Run("wrong secret", func(t *testing.T) {
		_, err := v.ValidateToken(sign(t, valid(), "other-secret"))
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		c := valid()
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		_, err := v.ValidateToken(sign(t, c, cfg.JWTSecret))
		assert.ErrorIs(t, err, auth.ErrExpiredToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		c := valid()
		c.Issuer = "someone-else"
		_, err := v.ValidateToken(sign(t, c, cfg.JWTSecret))
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		c := valid()
		c.Audience = jwt.ClaimStrings{"another-api"}
		_, err := v.ValidateToken(sign(t, c, cfg.JWTSecret))
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("subject is not a uuid", func(t *testing.T) {
		c := valid()
		c.Subject = "42"
		_, err := v.ValidateToken(sign(t, c, cfg.JWTSecret))
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}
