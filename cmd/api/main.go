package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rentease/internal/config"
	"rentease/internal/db"
	"rentease/internal/email"
	apihttp "rentease/internal/http"
	"rentease/internal/metrics"
	"rentease/internal/repository"
	"rentease/internal/service"
	"rentease/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal("migrations", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	pool, err := db.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = redisClient.Close() }()
	kv := store.NewRedisKV(redisClient)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := kv.Ping(pingCtx); err != nil {
		logger.Warn("redis ping failed", zap.Error(err))
	}
	cancel()

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}
	renderer, err := email.NewRenderer(cfg.FrontendURL)
	if err != nil {
		logger.Fatal("email templates", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	userRepo := repository.NewPgUserRepository(pool)
	jwtSvc := service.NewJWTService(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)

	policy := service.DefaultPolicy()
	policy.SessionTTL = jwtSvc.RefreshTTL()
	policy.RetryBaseDelay = cfg.DBRetryBaseDelay
	authSvc := service.NewAuthService(
		logger,
		userRepo,
		store.NewVerificationStore(kv),
		store.NewResetStore(kv),
		store.NewSessionStore(kv),
		jwtSvc,
		emailSender,
		renderer,
		recorder,
		policy,
	)
	userSvc := service.NewUserService(logger, userRepo)

	limiter := apihttp.NewIPRateLimiter(logger, apihttp.RateLimitConfig{
		PerMinute: cfg.AuthRatePerMinute,
		Burst:     cfg.AuthRateBurst,
	})
	defer limiter.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	health := apihttp.NewHealthHandler(logger, map[string]apihttp.Pinger{
		"postgres": pool,
		"redis":    kv,
	})
	cookies := apihttp.CookieConfig{Secure: cfg.SecureCookies(), Domain: cfg.CookieDomain}
	router, err := apihttp.NewRouter(apihttp.RouterDeps{
		Logger:         logger,
		Auth:           authSvc,
		AuthHandler:    apihttp.NewAuthHandler(logger, authSvc, cookies),
		UserHandler:    apihttp.NewUserHandler(logger, userSvc),
		HealthHandler:  health,
		RateLimiter:    limiter,
		Metrics:        recorder,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		logger.Fatal("router", zap.Error(err))
	}

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
