package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/pkg/config"
	"github.com/Krishnasaivarmakalidindi/Hyderabad-Clothing-E-Commerce-Platform-sub000/pkg/duration"
)

const devSecretPlaceholder = "change-this-to-a-secure-secret"

// Config holds all configuration for the auth service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"AUTH_HTTP_PORT" envDefault:"8001"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"storefront_secret"`
	PostgresDB   string `env:"AUTH_DB_NAME" envDefault:"auth_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Redis (token state store)
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Tokens. Expiry strings use the compact grammar (30s, 15m, 2h, 7d);
	// unparseable values fall back to 15 minutes.
	AccessTokenSecret  string `env:"ACCESS_TOKEN_SECRET" envDefault:"change-this-to-a-secure-secret"`
	RefreshTokenSecret string `env:"REFRESH_TOKEN_SECRET" envDefault:"change-this-to-a-secure-secret-2"`
	AccessTokenExpiry  string `env:"ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshTokenExpiry string `env:"REFRESH_TOKEN_EXPIRY" envDefault:"7d"`
	ResetTokenExpiry   string `env:"RESET_TOKEN_EXPIRY" envDefault:"1h"`

	// Password hashing
	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	// Cookies
	CookieDomain string `env:"COOKIE_DOMAIN" envDefault:""`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load auth config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, fmt.Errorf("invalid bcrypt cost: %d", cfg.BcryptCost)
	}

	// In non-development environments, require explicitly set, strong,
	// distinct token secrets.
	if cfg.Environment != "development" {
		for name, secret := range map[string]string{
			"ACCESS_TOKEN_SECRET":  cfg.AccessTokenSecret,
			"REFRESH_TOKEN_SECRET": cfg.RefreshTokenSecret,
		} {
			if secret == devSecretPlaceholder || secret == devSecretPlaceholder+"-2" {
				return nil, fmt.Errorf("%s must be explicitly set via environment variable in %q mode", name, cfg.Environment)
			}
			if len(secret) < 32 {
				return nil, fmt.Errorf("%s must be at least 32 characters long, got %d", name, len(secret))
			}
		}
		if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
			return nil, fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must be distinct")
		}
	}

	return cfg, nil
}

// AccessTokenTTL returns the parsed access token lifetime.
func (c *Config) AccessTokenTTL() time.Duration {
	return duration.ParseOrDefault(c.AccessTokenExpiry)
}

// RefreshTokenTTL returns the parsed refresh token lifetime.
func (c *Config) RefreshTokenTTL() time.Duration {
	return duration.ParseOrDefault(c.RefreshTokenExpiry)
}

// ResetTokenTTL returns the parsed password-reset token lifetime.
func (c *Config) ResetTokenTTL() time.Duration {
	d, err := duration.Parse(c.ResetTokenExpiry)
	if err != nil {
		return time.Hour
	}
	return d
}

// IsProduction reports whether the service runs in production mode, which
// gates the secure cookie attribute and the cookie domain.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
