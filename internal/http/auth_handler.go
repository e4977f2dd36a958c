package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rentease/internal/service"
)

// AuthHandler expone el ciclo de registro, verificación y sesión.
type AuthHandler struct {
	logger  *zap.Logger
	auth    *service.AuthService
	cookies CookieConfig
}

func NewAuthHandler(logger *zap.Logger, auth *service.AuthService, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		auth:    auth,
		cookies: cookies,
	}
}

// Register maneja POST /register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
		Role            string `json:"role"`
	}
	if !h.bind(c, &req) {
		return
	}

	token, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Role:            req.Role,
	})
	if err != nil {
		respondError(c, h.logger, "register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful. Check your email for the verification code",
		"token":   token,
	})
}

// VerifyEmail maneja POST /verify-email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
		OTP   string `json:"otp"`
	}
	if !h.bind(c, &req) {
		return
	}

	vctx, err := h.auth.VerifyEmail(c.Request.Context(), req.Token, req.OTP)
	if err != nil {
		respondError(c, h.logger, "verify email", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully", "context": vctx})
}

// ResendVerification maneja POST /resend-verification.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req struct {
		Token string `json:"token"`
	}
	if !h.bind(c, &req) {
		return
	}

	if err := h.auth.ResendVerification(c.Request.Context(), req.Token); err != nil {
		respondError(c, h.logger, "resend verification", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "A new verification code has been sent"})
}

// Login maneja POST /login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !h.bind(c, &req) {
		return
	}

	res, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		respondError(c, h.logger, "login", err)
		return
	}

	h.cookies.setTokens(c, res.Tokens)
	if !res.Verified {
		c.JSON(http.StatusOK, gin.H{
			"message":  "Email not verified. A verification code has been sent",
			"verified": false,
			"token":    res.VerificationToken,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "verified": true})
}

// Refresh maneja POST /refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	pair, err := h.auth.Refresh(c.Request.Context(), cookieValue(c, refreshCookie), c.ClientIP())
	if err != nil {
		respondError(c, h.logger, "refresh", err)
		return
	}

	h.cookies.setTokens(c, pair)
	c.JSON(http.StatusOK, gin.H{"message": "Token refreshed"})
}

// Logout maneja POST /logout. Siempre limpia las cookies.
func (h *AuthHandler) Logout(c *gin.Context) {
	err := h.auth.Logout(c.Request.Context(), cookieValue(c, accessCookie), c.ClientIP())
	h.cookies.clearTokens(c)
	if err != nil {
		respondError(c, h.logger, "logout", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// ForgotPassword maneja POST /forgot-password.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if !h.bind(c, &req) {
		return
	}

	if err := h.auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, "forgot password", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset link sent to your email"})
}

// ResetPassword maneja POST /reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token           string `json:"token"`
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if !h.bind(c, &req) {
		return
	}

	err := h.auth.ResetPassword(c.Request.Context(), service.ResetPasswordInput{
		Token:           req.Token,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		respondError(c, h.logger, "reset password", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset"})
}

// Status maneja GET /status. Cualquier fallo de identidad, incluido un
// usuario que ya no existe, es 401.
func (h *AuthHandler) Status(c *gin.Context) {
	role, err := h.auth.Status(c.Request.Context(), cookieValue(c, accessCookie), c.ClientIP())
	if err != nil {
		if isAuthError(err) || errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": msgUnauthorized})
			return
		}
		respondError(c, h.logger, "status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": role})
}

func (h *AuthHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn("invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidBody})
		return false
	}
	return true
}
