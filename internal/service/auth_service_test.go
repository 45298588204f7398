package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	appErrors "github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/errors"
)

func signTestToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthServiceValidateToken(t *testing.T) {
	svc := NewAuthService("test-secret", zap.NewNop())
	signed := signTestToken(t, "test-secret", &models.JWTClaims{
		ActorID: "user-1",
		Role:    models.RoleClinician,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.ValidateToken(signed)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.ActorID)
	require.Equal(t, models.RoleClinician, claims.Role)

	actor := ActorFromClaims(claims)
	require.Equal(t, "user-1", actor.ID)
	require.Equal(t, models.RoleClinician, actor.Role)
}

func TestAuthServiceRejectsWrongSecret(t *testing.T) {
	svc := NewAuthService("test-secret", zap.NewNop())
	signed := signTestToken(t, "other-secret", &models.JWTClaims{ActorID: "user-1"})

	_, err := svc.ValidateToken(signed)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceRejectsExpiredToken(t *testing.T) {
	svc := NewAuthService("test-secret", zap.NewNop())
	signed := signTestToken(t, "test-secret", &models.JWTClaims{
		ActorID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := svc.ValidateToken(signed)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestAuthServiceRejectsTokenWithoutActor(t *testing.T) {
	svc := NewAuthService("test-secret", zap.NewNop())
	signed := signTestToken(t, "test-secret", &models.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := svc.ValidateToken(signed)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
