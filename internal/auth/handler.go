package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/crmdesk/crmdesk/internal/apiclient"
	"github.com/crmdesk/crmdesk/internal/page"
	"github.com/crmdesk/crmdesk/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	pages          *page.Renderer
	sessionManager *shared.SessionManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, pages *page.Renderer, sessions *shared.SessionManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		pages:          pages,
		sessionManager: sessions,
		validator:      validator.New(),
	}
}

// MountRoutes registers the public auth routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/signup", h.showSignup)
	r.Post("/signup", h.handleSignup)
	r.Get("/forgot-password", h.showForgot)
	r.Post("/forgot-password", h.handleForgot)
	r.Get("/reset-password/{token}", h.showReset)
	r.Post("/reset-password/{token}", h.handleReset)
	r.Post("/logout", h.handleLogout)
}

type formPageData struct {
	Form   any
	Errors map[string]string
	Notice string
	Token  string
}

func (h *Handler) fieldErrors(form any) map[string]string {
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				errs[fieldErr.Field()] = page.ValidationMessage(fieldErr.Tag(), fieldErr.Param())
			}
		} else {
			errs["general"] = err.Error()
		}
	}
	return errs
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, "pages/login.html", "Login", formPageData{Form: loginForm{}})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	errs := h.fieldErrors(form)
	status := http.StatusBadRequest
	if len(errs) == 0 {
		token, err := h.service.Login(r.Context(), form.Email, form.Password)
		if err == nil {
			h.sessionManager.Renew(sess)
			sess.SetCredential(token)
			user, err := h.service.CurrentUser(r.Context(), sess)
			switch {
			case err == nil:
				sess.Set(shared.UserNameSessionKey, user.DisplayName())
			case errors.Is(err, apiclient.ErrUnauthorized):
				errs["general"] = "Login failed. Please check your credentials."
			default:
				h.logger.Warn("resolve current user", slog.Any("error", err))
			}
			if len(errs) == 0 {
				h.pages.Redirect(w, r, "/", "success", "Welcome back")
				return
			}
		} else {
			h.logger.Info("login rejected", slog.String("outcome", apiclient.Outcome(err)))
			if errors.Is(err, apiclient.ErrTransport) || errors.Is(err, apiclient.ErrUpstream) {
				errs["general"] = page.Message(err, "log in")
				status = page.Status(err)
			} else {
				errs["general"] = "Login failed. Please check your credentials."
			}
		}
	}
	form.Password = ""
	h.pages.Render(w, r, status, "pages/login.html", "Login", formPageData{Form: form, Errors: errs})
}

func (h *Handler) showSignup(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, "pages/signup.html", "Sign Up", formPageData{Form: signupForm{}})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := signupForm{
		FirstName: strings.TrimSpace(r.PostFormValue("first_name")),
		LastName:  strings.TrimSpace(r.PostFormValue("last_name")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		Password:  r.PostFormValue("password"),
	}
	errs := h.fieldErrors(form)
	status := http.StatusBadRequest
	if len(errs) == 0 {
		err := h.service.Register(r.Context(), form)
		if err == nil {
			h.pages.Redirect(w, r, page.LoginPath, "success", "Signup successful! You can now log in.")
			return
		}
		h.logger.Info("signup rejected", slog.String("outcome", apiclient.Outcome(err)))
		errs["general"] = page.Message(err, "sign up")
		status = page.Status(err)
	}
	form.Password = ""
	h.pages.Render(w, r, status, "pages/signup.html", "Sign Up", formPageData{Form: form, Errors: errs})
}

func (h *Handler) showForgot(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, http.StatusOK, "pages/forgot_password.html", "Forgot Password", formPageData{Form: forgotForm{}})
}

func (h *Handler) handleForgot(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := forgotForm{Email: strings.TrimSpace(r.PostFormValue("email"))}
	errs := h.fieldErrors(form)
	if len(errs) > 0 {
		h.pages.Render(w, r, http.StatusBadRequest, "pages/forgot_password.html", "Forgot Password", formPageData{Form: form, Errors: errs})
		return
	}
	msg, err := h.service.ForgotPassword(r.Context(), form.Email)
	if err != nil {
		errs["general"] = page.Message(err, "send the reset link")
		h.pages.Render(w, r, page.Status(err), "pages/forgot_password.html", "Forgot Password", formPageData{Form: form, Errors: errs})
		return
	}
	if msg == "" {
		msg = "If the address is registered, a reset link is on its way."
	}
	h.pages.Render(w, r, http.StatusOK, "pages/forgot_password.html", "Forgot Password", formPageData{Form: forgotForm{}, Notice: msg})
}

func (h *Handler) showReset(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	h.pages.Render(w, r, http.StatusOK, "pages/reset_password.html", "Reset Password", formPageData{Form: resetForm{}, Token: token})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	token := chi.URLParam(r, "token")
	form := resetForm{
		Password:        r.PostFormValue("password"),
		PasswordConfirm: r.PostFormValue("password2"),
	}
	errs := h.fieldErrors(form)
	if len(errs) > 0 {
		h.pages.Render(w, r, http.StatusBadRequest, "pages/reset_password.html", "Reset Password", formPageData{Form: resetForm{}, Errors: errs, Token: token})
		return
	}
	msg, err := h.service.ResetPassword(r.Context(), token, form.Password)
	if err != nil {
		errs["general"] = page.Message(err, "reset the password")
		h.pages.Render(w, r, page.Status(err), "pages/reset_password.html", "Reset Password", formPageData{Form: resetForm{}, Errors: errs, Token: token})
		return
	}
	if msg == "" {
		msg = "Password has been reset. You can now log in."
	}
	h.pages.Redirect(w, r, page.LoginPath, "success", msg)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	sess.ClearCredential()
	h.sessionManager.Destroy(sess)
	http.Redirect(w, r, page.LoginPath, http.StatusSeeOther)
}
