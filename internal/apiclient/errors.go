package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Failure kinds surfaced to callers. Match them with errors.Is.
var (
	// ErrUnauthorized means the CRM API refused the credential.
	ErrUnauthorized = errors.New("credential rejected")
	// ErrNotFound means the addressed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation means the CRM API rejected the submitted fields.
	ErrValidation = errors.New("validation rejected")
	// ErrConflict means a conditional write lost against another writer.
	ErrConflict = errors.New("conflicting update")
	// ErrTransport means the CRM API could not be reached in time.
	ErrTransport = errors.New("service unreachable")
	// ErrUpstream covers every other non-success answer.
	ErrUpstream = errors.New("upstream error")
)

// Error describes a failed call to the CRM API.
type Error struct {
	Kind    error
	Method  string
	Path    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "apiclient: %s %s: %v", e.Method, e.Path, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the failure kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Message returns the server supplied explanation carried by err, if any.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrValidation
	case http.StatusConflict, http.StatusPreconditionFailed:
		return ErrConflict
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrTransport
	default:
		return ErrUpstream
	}
}

type errorBody struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Errors  []struct {
		Msg string `json:"msg"`
	} `json:"errors"`
}

// extractMessage understands the error shapes the CRM API emits.
func extractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		text := strings.TrimSpace(string(body))
		if len(text) > 200 || strings.HasPrefix(text, "<") {
			return ""
		}
		return text
	}
	switch {
	case parsed.Msg != "":
		return parsed.Msg
	case parsed.Message != "":
		return parsed.Message
	case parsed.Error != "":
		return parsed.Error
	}
	msgs := make([]string, 0, len(parsed.Errors))
	for _, e := range parsed.Errors {
		if e.Msg != "" {
			msgs = append(msgs, e.Msg)
		}
	}
	return strings.Join(msgs, "; ")
}
