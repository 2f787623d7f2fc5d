package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 10*time.Second, cfg.TimeoutDuration())
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := "api_url = \"https://crm.example.com\"\ntimeout = \"3s\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://crm.example.com", cfg.APIURL)
	assert.Equal(t, 3*time.Second, cfg.TimeoutDuration())
}

func TestLoadConfigRejectsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte("api_url = "), 0o600))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestFileCredentials(t *testing.T) {
	creds := NewFileCredentials(filepath.Join(t.TempDir(), "nested"))
	assert.False(t, creds.HasCredential())

	require.NoError(t, creds.SetCredential("tok-1"))
	assert.Equal(t, "tok-1", creds.Credential())

	creds.ClearCredential()
	assert.False(t, creds.HasCredential())
	creds.ClearCredential()
}
