package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", "session")
	t.Setenv("CSRF_SECRET", "csrf")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5001", cfg.CRMAPIURL)
	assert.Equal(t, 10*time.Second, cfg.CRMAPITimeout)
	assert.Equal(t, 2, cfg.CRMAPIMaxRetries)
	assert.Equal(t, 168*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("CRM_API_URL", "https://crm.internal:8443")
	t.Setenv("CRM_API_MAX_RETRIES", "-3")
	t.Setenv("REDIS_DB", "4")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "https://crm.internal:8443", cfg.CRMAPIURL)
	assert.Equal(t, 0, cfg.CRMAPIMaxRetries)
	assert.Equal(t, 4, cfg.RedisDB)
}

func TestLoadConfigRejectsRelativeAPIURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CRM_API_URL", "localhost:5001")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("CSRF_SECRET", "csrf")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestTestModeFlag(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	assert.False(t, InTestMode())
}
