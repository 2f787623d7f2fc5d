package app

import (
	"errors"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the console.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"25s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"168h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`

	CRMAPIURL        string        `envconfig:"CRM_API_URL" default:"http://localhost:5001"`
	CRMAPITimeout    time.Duration `envconfig:"CRM_API_TIMEOUT" default:"10s"`
	CRMAPIMaxRetries int           `envconfig:"CRM_API_MAX_RETRIES" default:"2"`

	GotenbergURL string `envconfig:"GOTENBERG_URL" default:"http://127.0.0.1:3000"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if u, err := url.Parse(cfg.CRMAPIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("CRM_API_URL must be an absolute http(s) URL")
	}
	if cfg.CRMAPIMaxRetries < 0 {
		cfg.CRMAPIMaxRetries = 0
	}
	return &cfg, nil
}

// IsProduction returns true when the console runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
