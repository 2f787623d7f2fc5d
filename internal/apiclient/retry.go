package apiclient

import (
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// RetryConfig bounds the retries applied to transport failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func normalizeRetryConfig(cfg RetryConfig) RetryConfig {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	return cfg
}

// isTransportFailure reports whether an attempt failed before the CRM API
// could answer. Validation and authentication answers are never retried.
func isTransportFailure(resp *Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return true
	}
	switch resp.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func newRetryExecutor(cfg RetryConfig) failsafe.Executor[*Response] {
	cfg = normalizeRetryConfig(cfg)
	policy := retrypolicy.NewBuilder[*Response]().
		HandleIf(isTransportFailure).
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithJitterFactor(0.1).
		WithMaxRetries(cfg.MaxRetries).
		ReturnLastFailure().
		Build()
	return failsafe.With(policy)
}

// idempotent methods may be replayed after a transport failure. POST is
// excluded so a payment or record is never created twice.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}
