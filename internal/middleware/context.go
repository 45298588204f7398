package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ChomynNicolas/chomyn-odonto-project-sub004/internal/models"
)

// ClaimsFrom returns the authenticated claims stored by the JWT middleware,
// or nil when the request is anonymous.
func ClaimsFrom(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
