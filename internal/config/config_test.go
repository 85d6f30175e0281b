package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, time.Hour, cfg.Security.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.Security.ResetTTL)
	assert.Equal(t, 10, cfg.Security.BcryptCost)
	assert.True(t, cfg.Security.StudentDOBFallback)
	assert.Equal(t, "portal:tasks", cfg.Queue.Stream)
	assert.False(t, cfg.IsProduction())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORTAL_ENVIRONMENT", "production")
	t.Setenv("PORTAL_SECURITY_SESSIONSECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("PORTAL_SECURITY_OTPTTL", "5m")
	t.Setenv("PORTAL_HTTP_PORT", "9090")
	t.Setenv("PORTAL_ALLOWCORSORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Security.SessionSecret)
	assert.Equal(t, 5*time.Minute, cfg.Security.OTPTTL)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowCORSOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsShortSecret(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Security.SessionSecret = "short"
	assert.Error(t, cfg.Validate())
}
