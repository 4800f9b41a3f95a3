package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/edusuite/siga-api/internal/middleware"
	"github.com/edusuite/siga-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

func callerCapabilities(c *gin.Context) models.Capabilities {
	if claims := claimsFromContext(c); claims != nil {
		return models.CapabilitiesForRole(claims.Role)
	}
	return models.Capabilities{}
}
