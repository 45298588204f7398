package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
	appErrors "github.com/ChomynNicolas/chomyn-odonto-project-sub004/pkg/errors"
)

// AuthService validates access tokens issued by the clinic identity provider.
// The engine does not issue credentials itself; it only extracts the acting
// clinician from the bearer token.
type AuthService struct {
	secret []byte
	logger *zap.Logger
}

// NewAuthService constructs the service.
func NewAuthService(secret string, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{secret: []byte(secret), logger: logger}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.ActorID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no actor")
	}

	return claims, nil
}

// ActorFromClaims maps token claims to the engine's actor identity.
func ActorFromClaims(claims *models.JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{ID: claims.ActorID, Role: claims.Role}
}
