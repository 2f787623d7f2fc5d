// Package page holds the rendering and failure conventions shared by every
// console handler.
package page

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/crmdesk/crmdesk/internal/apiclient"
	"github.com/crmdesk/crmdesk/internal/shared"
	"github.com/crmdesk/crmdesk/internal/view"
)

// LoginPath is where unauthenticated or rejected users are sent.
const LoginPath = "/login"

// Renderer renders pages with layout data and maps API failures to
// responses.
type Renderer struct {
	logger    *slog.Logger
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewRenderer constructs a Renderer.
func NewRenderer(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger, templates: templates, csrf: csrf}
}

// Logger exposes the logger used for render failures.
func (p *Renderer) Logger() *slog.Logger {
	return p.logger
}

// Render writes the page with the common layout data.
func (p *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, tmpl, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := p.csrf.EnsureToken(r.Context(), sess)
	viewData := view.TemplateData{
		Title:         title,
		CSRFToken:     csrfToken,
		Flash:         sess.PopFlash(),
		CurrentPath:   r.URL.Path,
		UserName:      sess.UserName(),
		Authenticated: sess.HasCredential(),
		Data:          data,
	}
	if err := p.templates.Render(w, status, tmpl, viewData); err != nil {
		p.logger.Error("template render failed", slog.Any("error", err), slog.String("template", tmpl))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Redirect queues a flash message and sends the browser to url.
func (p *Renderer) Redirect(w http.ResponseWriter, r *http.Request, url, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil && message != "" {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// RedirectIfRejected finishes the request when err means the CRM API
// refused the credential. The API client already cleared it.
func (p *Renderer) RedirectIfRejected(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, apiclient.ErrUnauthorized) {
		return false
	}
	p.Redirect(w, r, LoginPath, "error", "Your session has expired. Please log in again.")
	return true
}

// Status maps an API failure to the status of the page that reports it.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, apiclient.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apiclient.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apiclient.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apiclient.ErrTransport), errors.Is(err, apiclient.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message turns err into text safe to show to the user.
func Message(err error, action string) string {
	switch {
	case errors.Is(err, apiclient.ErrValidation):
		if msg := apiclient.Message(err); msg != "" {
			return msg
		}
		return "Some fields were rejected. Please check the form and try again."
	case errors.Is(err, apiclient.ErrNotFound):
		return "The requested record was not found."
	case errors.Is(err, apiclient.ErrConflict):
		return "The record was changed by someone else. Reload and try again."
	case errors.Is(err, apiclient.ErrTransport):
		return "The CRM service is unreachable right now. Please try again shortly."
	default:
		return "Failed to " + action + ". Please try again."
	}
}

// ValidationMessage describes a failed validator tag for a form field.
func ValidationMessage(tag, param string) string {
	switch tag {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return "Must be at least " + param + " characters."
	case "max":
		return "Must be at most " + param + " characters."
	case "eqfield":
		return "Passwords do not match."
	case "numeric", "number":
		return "Enter a number."
	case "gt", "gte":
		return "Must be greater than " + param + "."
	case "datetime":
		return "Enter a date as YYYY-MM-DD."
	case "oneof":
		return "Choose one of the listed options."
	default:
		return "Invalid value."
	}
}
