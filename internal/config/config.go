package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	AppEnv           string        `env:"APP_ENV" envDefault:"development"`
	HTTPPort         string        `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL      string        `env:"DATABASE_URL,required,notEmpty"`
	RunMigrations    bool          `env:"RUN_MIGRATIONS" envDefault:"true"`
	DBRetryBaseDelay time.Duration `env:"DB_RETRY_BASE_DELAY" envDefault:"1s"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTAccessSecret  string        `env:"JWT_ACCESS_SECRET,required,notEmpty"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET,required,notEmpty"`
	JWTAccessTTL     time.Duration `env:"JWT_ACCESS_TTL" envDefault:"1h"`
	JWTRefreshTTL    time.Duration `env:"JWT_REFRESH_TTL" envDefault:"5h"`

	CookieSecure   bool     `env:"COOKIE_SECURE" envDefault:"false"`
	CookieDomain   string   `env:"COOKIE_DOMAIN"`
	FrontendURL    string   `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	AuthRatePerMinute int `env:"AUTH_RATE_PER_MINUTE" envDefault:"30"`
	AuthRateBurst     int `env:"AUTH_RATE_BURST" envDefault:"10"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"RentEase"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`
}

var (
	ErrSameJWTSecrets = errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	ErrNonPositiveTTL = errors.New("JWT_ACCESS_TTL and JWT_REFRESH_TTL must be positive")
)

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, ErrSameJWTSecrets
	}
	if cfg.JWTAccessTTL <= 0 || cfg.JWTRefreshTTL <= 0 {
		return nil, ErrNonPositiveTTL
	}
	return &cfg, nil
}

// IsProduction indica si el servicio corre en producción.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SecureCookies decide el flag Secure de las cookies de sesión.
func (c *Config) SecureCookies() bool {
	return c.CookieSecure || c.IsProduction()
}
