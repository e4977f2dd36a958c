package http

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig define el token bucket por IP de las rutas públicas.
type RateLimitConfig struct {
	PerMinute       int
	Burst           int
	CleanupInterval time.Duration
}

type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// IPRateLimiter limita peticiones por IP de cliente.
type IPRateLimiter struct {
	logger    *zap.Logger
	limit     rate.Limit
	perMinute int
	burst     int
	ttl       time.Duration

	mu       sync.Mutex
	limiters map[string]*ipLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter arranca además la limpieza periódica de entradas viejas.
// PerMinute <= 0 desactiva el límite.
func NewIPRateLimiter(logger *zap.Logger, cfg RateLimitConfig) *IPRateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	rl := &IPRateLimiter{
		logger:   logger,
		limit:    rate.Inf,
		burst:    cfg.Burst,
		ttl:      cfg.CleanupInterval * 2,
		limiters: make(map[string]*ipLimiter),
		stopCh:   make(chan struct{}),
	}
	if cfg.PerMinute > 0 {
		rl.perMinute = cfg.PerMinute
		rl.limit = rate.Limit(float64(cfg.PerMinute) / 60.0)
	}
	go rl.cleanupLoop(cfg.CleanupInterval)
	return rl
}

func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if rl.get(ip).Allow() {
			c.Next()
			return
		}
		rl.logger.Warn("rate limit exceeded", zap.String("client_ip", ip), zap.String("path", c.FullPath()))
		c.Header("Retry-After", strconv.Itoa(rl.retryAfter()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	}
}

// Len devuelve cuántas IPs tienen limitador activo.
func (rl *IPRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *IPRateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	if l, ok := rl.limiters[ip]; ok {
		l.lastAccess = now
		return l.limiter
	}
	l := &ipLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst), lastAccess: now}
	rl.limiters[ip] = l
	return l.limiter
}

func (rl *IPRateLimiter) retryAfter() int {
	if rl.perMinute <= 0 {
		return 1
	}
	secs := int(math.Ceil(60.0 / float64(rl.perMinute)))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (rl *IPRateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *IPRateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, l := range rl.limiters {
		if now.Sub(l.lastAccess) > rl.ttl {
			delete(rl.limiters, ip)
		}
	}
}
