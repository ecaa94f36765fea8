package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"PORTAL_TOKEN_TTL", "PORTAL_JWT_ISSUER", "PORTAL_CORS_ALLOWED_ORIGINS",
	"PORTAL_WRITE_RETRIES", "PORTAL_REQUEST_TIMEOUT", "PORTAL_MIN_PASSWORD_LENGTH",
	"PORTAL_DEFAULT_WORK_LOCATION", "PORTAL_AUDIT_ENABLED",
}

func clearEnv(t *testing.T, dir string) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
	t.Setenv("PORTAL_CONFIG_PATH", dir)
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, time.Hour, cfg.TokenTTL())
	assert.Equal(t, "portal", cfg.JWTIssuer)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 1, cfg.WriteRetries)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 8, cfg.MinPasswordLength)
	assert.Equal(t, "Büro", cfg.DefaultWorkLocation)
	assert.True(t, cfg.AuditEnabled)
	for _, attr := range cfg.Attributes() {
		assert.Equal(t, "default", attr.Source, attr.Name)
	}
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	clearEnv(t, dir)
	writeConfig(t, dir, `
token_ttl: 600
write_retries: 0
audit_enabled: false
cors_allowed_origins:
  - https://portal.example.com
`)
	t.Setenv("PORTAL_TOKEN_TTL", "900")
	t.Setenv("PORTAL_DEFAULT_WORK_LOCATION", "Homeoffice")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 900, cfg.TokenTTLSeconds)
	assert.Equal(t, "environment", cfg.Source("token_ttl"))
	assert.Equal(t, 0, cfg.WriteRetries)
	assert.Equal(t, "file", cfg.Source("write_retries"))
	assert.False(t, cfg.AuditEnabled)
	assert.Equal(t, "file", cfg.Source("audit_enabled"))
	assert.Equal(t, []string{"https://portal.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "Homeoffice", cfg.DefaultWorkLocation)
	assert.Equal(t, "default", cfg.Source("jwt_issuer"))
	assert.Equal(t, filepath.Join(dir, ConfigFileName), cfg.ConfigFilePath())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	clearEnv(t, dir)

	t.Setenv("PORTAL_WRITE_RETRIES", "twice")
	_, err := Load()
	assert.ErrorContains(t, err, "PORTAL_WRITE_RETRIES")

	t.Setenv("PORTAL_WRITE_RETRIES", "")
	writeConfig(t, dir, "token_ttl: [")
	_, err = Load()
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestLoad_CORSOriginsFromEnvironment(t *testing.T) {
	clearEnv(t, t.TempDir())
	t.Setenv("PORTAL_CORS_ALLOWED_ORIGINS", " https://a.example.com , ,https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*PortalConfig)
		errMsg string
	}{
		{"negative retries", func(c *PortalConfig) { c.WriteRetries = -1 }, "write_retries"},
		{"short ttl", func(c *PortalConfig) { c.TokenTTLSeconds = 30 }, "token_ttl"},
		{"short passwords", func(c *PortalConfig) { c.MinPasswordLength = 4 }, "min_password_length"},
		{"no timeout", func(c *PortalConfig) { c.RequestTimeoutSeconds = 0 }, "request_timeout"},
		{"no issuer", func(c *PortalConfig) { c.JWTIssuer = " " }, "jwt_issuer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newDefault()
			tt.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestFormatText(t *testing.T) {
	clearEnv(t, "/nonexistent/portal")
	t.Setenv("PORTAL_JWT_ISSUER", "portal-test")
	t.Setenv("PORTAL_AUDIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "format_text", []byte(cfg.FormatText()))
}

func TestFormatJSON(t *testing.T) {
	clearEnv(t, "/nonexistent/portal")

	cfg, err := Load()
	require.NoError(t, err)
	out, err := cfg.FormatJSON()
	require.NoError(t, err)
	assert.Contains(t, out, `"config_file": "/nonexistent/portal/portal.yml"`)
	assert.Contains(t, out, `"name": "default_work_location"`)
}

func TestReloadAndWatch(t *testing.T) {
	dir := t.TempDir()
	clearEnv(t, dir)
	writeConfig(t, dir, "write_retries: 2\n")
	require.NoError(t, Reload())
	assert.Equal(t, 2, Get().WriteRetries)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *PortalConfig, 4)
	require.NoError(t, Watch(ctx, func(cfg *PortalConfig) {
		select {
		case reloaded <- cfg:
		default:
		}
	}))

	writeConfig(t, dir, "write_retries: 3\n")
	assert.Eventually(t, func() bool {
		select {
		case cfg := <-reloaded:
			return cfg.WriteRetries == 3
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
}
