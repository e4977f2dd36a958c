package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rentease/internal/domain"
	"rentease/internal/service"
)

// UserHandler expone los datos del usuario autenticado.
type UserHandler struct {
	logger *zap.Logger
	users  *service.UserService
}

func NewUserHandler(logger *zap.Logger, users *service.UserService) *UserHandler {
	return &UserHandler{logger: logger, users: users}
}

// Me maneja GET /me.
func (h *UserHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return
	}

	user, err := h.users.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, h.logger, "me", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Onboarding maneja PUT /onboarding.
func (h *UserHandler) Onboarding(c *gin.Context) {
	claims, fields, ok := h.profileRequest(c)
	if !ok {
		return
	}
	if err := h.users.CompleteOnboarding(c.Request.Context(), claims.UserID, fields); err != nil {
		respondError(c, h.logger, "onboarding", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Onboarding completed"})
}

// UpdateProfile maneja PUT /update-profile.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	claims, fields, ok := h.profileRequest(c)
	if !ok {
		return
	}
	if err := h.users.UpdateProfile(c.Request.Context(), claims.UserID, fields); err != nil {
		respondError(c, h.logger, "update profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated"})
}

func (h *UserHandler) profileRequest(c *gin.Context) (service.Claims, domain.ProfileFields, bool) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
		return service.Claims{}, domain.ProfileFields{}, false
	}
	var fields domain.ProfileFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		h.logger.Warn("invalid profile request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return service.Claims{}, domain.ProfileFields{}, false
	}
	return claims, fields, true
}
