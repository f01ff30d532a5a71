// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"truledgr/backend/internal/identity/service"
)

// placeholderSecret is the sample value shipped in .env.example; it is refused in production.
const placeholderSecret = "change-me"

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is a postgres:// DSN (pgx) or a SQLite path / file: DSN (modernc).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DBAutoMigrate creates the schema at startup. Meant for SQLite and local runs; Postgres
	// deployments run cmd/migrate.
	DBAutoMigrate bool `mapstructure:"DB_AUTO_MIGRATE"`

	// JWTSecretKey is the HS256 signing secret. Ignored when a PEM key pair is configured.
	JWTSecretKey string `mapstructure:"JWT_SECRET_KEY"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// SessionTTLRaw is the absolute lifetime of an ordinary session.
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// ImpersonationTTLRaw is the absolute lifetime of an impersonation session.
	ImpersonationTTLRaw string `mapstructure:"IMPERSONATION_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// RedisURL enables login throttling when set (redis:// or rediss://).
	RedisURL string `mapstructure:"REDIS_URL"`
	// LoginMaxAttempts is the failure budget per username and per IP within LoginCooldown.
	LoginMaxAttempts int `mapstructure:"LOGIN_MAX_ATTEMPTS"`
	// LoginCooldownRaw is the throttle window (e.g. "15m").
	LoginCooldownRaw string `mapstructure:"LOGIN_COOLDOWN"`

	// OTLPEndpoint enables OpenTelemetry export when set (host:port or URL).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext OTLP connection.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is json or text.
	LogFormat string `mapstructure:"LOG_FORMAT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	accessTTL, refreshTTL, sessionTTL, impersonationTTL, loginCooldown time.Duration
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore a missing file

	v.AutomaticEnv()

	// Every key needs a default so Unmarshal sees env-only values.
	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("JWT_SECRET_KEY", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "truledgr-auth")
	v.SetDefault("JWT_AUDIENCE", "truledgr-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("SESSION_TTL", "1h")
	v.SetDefault("IMPERSONATION_TTL", "2h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 10)
	v.SetDefault("LOGIN_COOLDOWN", "15m")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.LoginMaxAttempts <= 0 {
		return errors.New("config: LOGIN_MAX_ATTEMPTS must be positive")
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"JWT_ACCESS_TTL", c.JWTAccessTTL, &c.accessTTL},
		{"JWT_REFRESH_TTL", c.JWTRefreshTTL, &c.refreshTTL},
		{"SESSION_TTL", c.SessionTTLRaw, &c.sessionTTL},
		{"IMPERSONATION_TTL", c.ImpersonationTTLRaw, &c.impersonationTTL},
		{"LOGIN_COOLDOWN", c.LoginCooldownRaw, &c.loginCooldown},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil || parsed <= 0 {
			return fmt.Errorf("config: %s must be a positive duration, got %q", d.key, d.raw)
		}
		*d.dst = parsed
	}

	hasKeyPair := c.JWTPrivateKey != "" || c.JWTPublicKey != ""
	if c.IsProduction() && !hasKeyPair {
		secret := strings.TrimSpace(c.JWTSecretKey)
		if secret == "" || secret == placeholderSecret {
			return errors.New("config: JWT_SECRET_KEY must be set to a real secret when APP_ENV=production")
		}
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// AccessTTL returns the parsed JWT_ACCESS_TTL. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration { return orDefault(c.accessTTL, 15*time.Minute) }

// RefreshTTL returns the parsed JWT_REFRESH_TTL. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration { return orDefault(c.refreshTTL, 168*time.Hour) }

// SessionTTL returns the parsed SESSION_TTL. Returns 1h if unset or invalid.
func (c *Config) SessionTTL() time.Duration { return orDefault(c.sessionTTL, time.Hour) }

// ImpersonationTTL returns the parsed IMPERSONATION_TTL. Returns 2h if unset or invalid.
func (c *Config) ImpersonationTTL() time.Duration { return orDefault(c.impersonationTTL, 2*time.Hour) }

// LoginCooldown returns the parsed LOGIN_COOLDOWN. Returns 15m if unset or invalid.
func (c *Config) LoginCooldown() time.Duration { return orDefault(c.loginCooldown, 15*time.Minute) }

// ServiceConfig returns the token and session lifetimes for the auth services.
func (c *Config) ServiceConfig() service.Config {
	return service.Config{
		AccessTTL:        c.AccessTTL(),
		RefreshTTL:       c.RefreshTTL(),
		SessionTTL:       c.SessionTTL(),
		ImpersonationTTL: c.ImpersonationTTL(),
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// ParseLogLevel maps LOG_LEVEL onto a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("config: LOG_LEVEL %q: %w", s, err)
	}
	return l, nil
}
