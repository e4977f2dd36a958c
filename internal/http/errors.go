package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rentease/internal/service"
)

const (
	msgInternal     = "Internal Server Error"
	codeDisabled    = "ACCOUNT_DISABLED"
	msgInvalidBody  = "Invalid request body"
	msgUnauthorized = "Not authenticated"
)

type errorResponse struct {
	err    error
	status int
	msg    string
	code   string
}

var errorResponses = []errorResponse{
	{err: service.ErrEmailTaken, status: http.StatusConflict, msg: "Email is already registered"},
	{err: service.ErrUserNotFound, status: http.StatusNotFound, msg: "User not found"},
	{err: service.ErrAccountDisabled, status: http.StatusForbidden, msg: "Account is disabled", code: codeDisabled},
	{err: service.ErrInvalidCredentials, status: http.StatusUnauthorized, msg: "Invalid credentials"},
	{err: service.ErrVerificationInvalid, status: http.StatusBadRequest, msg: "Invalid or expired verification token"},
	{err: service.ErrOTPInvalid, status: http.StatusBadRequest, msg: "Invalid OTP"},
	{err: service.ErrOTPLocked, status: http.StatusTooManyRequests, msg: "Too many invalid attempts"},
	{err: service.ErrResendLimit, status: http.StatusTooManyRequests, msg: "Verification code can only be resent once"},
	{err: service.ErrPasswordCooldown, status: http.StatusTooManyRequests, msg: "Password was changed recently, try again later"},
	{err: service.ErrResetTokenInvalid, status: http.StatusBadRequest, msg: "Invalid or expired reset token"},
	{err: service.ErrMissingToken, status: http.StatusUnauthorized, msg: "No token provided"},
	{err: service.ErrTokenInvalid, status: http.StatusForbidden, msg: "Invalid or expired token"},
	{err: service.ErrSessionInvalid, status: http.StatusForbidden, msg: "Session is no longer valid"},
	{err: service.ErrAlreadyOnboarded, status: http.StatusUnprocessableEntity, msg: "Onboarding already completed"},
}

// respondError traduce errores del servicio a respuestas HTTP. Lo que no se
// reconoce se registra y se responde como 500 sin detalles.
func respondError(c *gin.Context, logger *zap.Logger, op string, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Msg})
		return
	}
	for _, r := range errorResponses {
		if !errors.Is(err, r.err) {
			continue
		}
		body := gin.H{"error": r.msg}
		if r.code != "" {
			body["code"] = r.code
		}
		c.JSON(r.status, body)
		return
	}
	logger.Error(op+" failed", zap.Error(err), zap.String("client_ip", c.ClientIP()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msgInternal})
}

// isAuthError indica fallos de identidad que en rutas protegidas son 401.
func isAuthError(err error) bool {
	return errors.Is(err, service.ErrMissingToken) ||
		errors.Is(err, service.ErrTokenInvalid) ||
		errors.Is(err, service.ErrSessionInvalid)
}
