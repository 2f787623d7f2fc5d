// Package cli implements crmctl, the operator command line for the CRM API.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	configFileName = "config.toml"
	tokenFileName  = "token"
)

// Config is read from config.toml in the crmctl config directory.
type Config struct {
	APIURL  string `toml:"api_url"`
	Timeout string `toml:"timeout"`
}

// DefaultConfig matches a CRM API running locally.
func DefaultConfig() Config {
	return Config{
		APIURL:  "http://localhost:5001",
		Timeout: "10s",
	}
}

// DefaultDir returns ~/.config/crmctl or the platform equivalent.
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".crmctl"
	}
	return filepath.Join(base, "crmctl")
}

// LoadConfig reads dir/config.toml. A missing file yields the defaults.
func LoadConfig(dir string) (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(dir, configFileName)
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	return cfg, nil
}

// TimeoutDuration parses Timeout, falling back to 10s.
func (c Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
