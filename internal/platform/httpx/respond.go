// Package httpx provides JSON response helpers following RFC7807 problem
// details, used by the machine-facing endpoints.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

// Health is the body of /healthz. Checks maps a dependency to "ok" or the
// reason it failed.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(r *http.Request) error

// HealthHandler runs checks and answers 200 when all pass, 503 otherwise.
func HealthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := Health{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(r); err != nil {
				body.Checks[name] = err.Error()
				body.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			body.Checks[name] = "ok"
		}
		JSON(w, status, body)
	}
}
