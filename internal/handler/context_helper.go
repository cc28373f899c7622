package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/yyup-edu/enrollment-finance-api/internal/middleware"
	"github.com/yyup-edu/enrollment-finance-api/internal/models"
)

// claimsFromContext extracts the authenticated user's claims, if any.
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

// actorID returns the acting user id or an empty string.
func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}
