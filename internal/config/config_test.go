package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"HTTP_ADDR", "DATABASE_URL", "DB_AUTO_MIGRATE", "JWT_SECRET_KEY", "JWT_PRIVATE_KEY", "JWT_PUBLIC_KEY",
	"JWT_ISSUER", "JWT_AUDIENCE", "JWT_ACCESS_TTL", "JWT_REFRESH_TTL", "SESSION_TTL", "IMPERSONATION_TTL",
	"BCRYPT_COST", "REDIS_URL", "LOGIN_MAX_ATTEMPTS", "LOGIN_COOLDOWN", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"OTEL_EXPORTER_OTLP_INSECURE", "LOG_LEVEL", "LOG_FORMAT", "APP_ENV",
}

// clearEnv blanks every key; viper treats empty variables as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func load(t *testing.T) (*Config, error) {
	t.Helper()
	return LoadFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, "truledgr-auth", cfg.JWTIssuer)
	assert.Equal(t, "truledgr-api", cfg.JWTAudience)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL())
	assert.Equal(t, 168*time.Hour, cfg.RefreshTTL())
	assert.Equal(t, time.Hour, cfg.SessionTTL())
	assert.Equal(t, 2*time.Hour, cfg.ImpersonationTTL())
	assert.Equal(t, 15*time.Minute, cfg.LoginCooldown())
	assert.Equal(t, 10, cfg.LoginMaxAttempts)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.DBAutoMigrate)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvVarOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("JWT_ISSUER", "custom-issuer")
	t.Setenv("BCRYPT_COST", "14")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("IMPERSONATION_TTL", "45m")
	t.Setenv("DB_AUTO_MIGRATE", "true")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "custom-issuer", cfg.JWTIssuer)
	assert.Equal(t, 14, cfg.BcryptCost)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL())
	assert.Equal(t, 45*time.Minute, cfg.ImpersonationTTL())
	assert.True(t, cfg.DBAutoMigrate)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
}

func TestLoad_EnvFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_ISSUER=file-issuer\nHTTP_ADDR=:7000\n"), 0o600))
	t.Setenv("HTTP_ADDR", ":7777")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file-issuer", cfg.JWTIssuer)
	assert.Equal(t, ":7777", cfg.HTTPAddr, "env overrides the file")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"BCRYPT_COST", "3"},
		{"BCRYPT_COST", "32"},
		{"JWT_ACCESS_TTL", "soon"},
		{"SESSION_TTL", "-1h"},
		{"IMPERSONATION_TTL", "0s"},
		{"LOGIN_COOLDOWN", "forever"},
		{"LOGIN_MAX_ATTEMPTS", "-2"},
		{"LOG_LEVEL", "chatty"},
		{"LOG_FORMAT", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := load(t)
			assert.Error(t, err)
		})
	}
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	_, err := load(t)
	assert.Error(t, err)

	t.Setenv("JWT_SECRET_KEY", "change-me")
	_, err = load(t)
	assert.Error(t, err)

	t.Setenv("JWT_SECRET_KEY", "a-long-random-production-secret")
	cfg, err := load(t)
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_ProductionWithKeyPair(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_PRIVATE_KEY", "/etc/truledgr/jwt.key")
	t.Setenv("JWT_PUBLIC_KEY", "/etc/truledgr/jwt.pub")
	_, err := load(t)
	assert.NoError(t, err)
}

func TestAccessors_ZeroValueFallbacks(t *testing.T) {
	var cfg Config
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL())
	assert.Equal(t, 168*time.Hour, cfg.RefreshTTL())
	assert.Equal(t, time.Hour, cfg.SessionTTL())
	assert.Equal(t, 2*time.Hour, cfg.ImpersonationTTL())
}

func TestParseLogLevel(t *testing.T) {
	l, err := ParseLogLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", l.String())
	_, err = ParseLogLevel("loud")
	assert.Error(t, err)
}

func TestNewLogger_FormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "warn", LogFormat: "json"}
	log := cfg.NewLogger(&buf)
	log.Info("hidden")
	log.Warn("shown", "k", "v")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)

	buf.Reset()
	cfg = &Config{LogLevel: "debug", LogFormat: "text"}
	cfg.NewLogger(&buf).Debug("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestServiceConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_ACCESS_TTL", "5m")
	cfg, err := load(t)
	require.NoError(t, err)
	sc := cfg.ServiceConfig()
	assert.Equal(t, 5*time.Minute, sc.AccessTTL)
	assert.Equal(t, 168*time.Hour, sc.RefreshTTL)
	assert.Equal(t, time.Hour, sc.SessionTTL)
	assert.Equal(t, 2*time.Hour, sc.ImpersonationTTL)
}
