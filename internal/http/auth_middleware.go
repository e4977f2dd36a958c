package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rentease/internal/service"
)

const authClaimsKey = "auth_claims"

// SessionAuthMiddleware exige una cookie accessToken válida cuyo sid siga
// siendo la sesión viva de (usuario, IP).
func SessionAuthMiddleware(logger *zap.Logger, auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := auth.Authenticate(c.Request.Context(), cookieValue(c, accessCookie), c.ClientIP())
		if err != nil {
			if isAuthError(err) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
				return
			}
			logger.Error("authenticate failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// GetAuthClaims obtiene los claims guardados por SessionAuthMiddleware.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}
