package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rentease/internal/metrics"
	"rentease/internal/service"
)

// RouterDeps agrupa lo que necesita el router.
type RouterDeps struct {
	Logger         *zap.Logger
	Auth           *service.AuthService
	AuthHandler    *AuthHandler
	UserHandler    *UserHandler
	HealthHandler  *HealthHandler
	RateLimiter    *IPRateLimiter
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
	TrustedProxies []string
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(deps RouterDeps) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, err
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}

	r.Use(zapLoggerMiddleware(deps.Logger, deps.Metrics), gin.Recovery())

	if deps.HealthHandler != nil {
		r.GET("/healthz", deps.HealthHandler.Healthz)
	}
	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	api := r.Group("/api/auth", jsonContentTypeMiddleware())

	public := api.Group("")
	if deps.RateLimiter != nil {
		public.Use(deps.RateLimiter.Middleware())
	}
	public.POST("/register", deps.AuthHandler.Register)
	public.POST("/verify-email", deps.AuthHandler.VerifyEmail)
	public.POST("/resend-verification", deps.AuthHandler.ResendVerification)
	public.POST("/forgot-password", deps.AuthHandler.ForgotPassword)
	public.POST("/reset-password", deps.AuthHandler.ResetPassword)
	public.POST("/login", deps.AuthHandler.Login)

	api.POST("/refresh", deps.AuthHandler.Refresh)
	api.POST("/logout", deps.AuthHandler.Logout)
	api.GET("/status", deps.AuthHandler.Status)

	protected := api.Group("", SessionAuthMiddleware(deps.Logger, deps.Auth))
	protected.GET("/me", deps.UserHandler.Me)
	protected.PUT("/onboarding", deps.UserHandler.Onboarding)
	protected.PUT("/update-profile", deps.UserHandler.UpdateProfile)

	return r, nil
}

// zapLoggerMiddleware registra cada petición con zap y la cuenta en métricas.
func zapLoggerMiddleware(logger *zap.Logger, recorder metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		recorder.RecordHTTPRequest(c.Request.Method, c.FullPath(), status, latency)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
