package auth

import (
	"context"
	"errors"
	"net/url"

	"github.com/crmdesk/crmdesk/internal/apiclient"
)

// ErrNoToken means the CRM API accepted a login but returned no token.
var ErrNoToken = errors.New("auth: login response carried no token")

// API is the subset of the CRM API client used by authentication flows.
type API interface {
	Get(ctx context.Context, creds apiclient.Credentials, path string, out any) error
	Post(ctx context.Context, creds apiclient.Credentials, path string, in, out any) error
}

// Service wraps the CRM API authentication endpoints.
type Service struct {
	api API
}

// NewService constructs a new Service.
func NewService(api API) *Service {
	return &Service{api: api}
}

// Login exchanges email/password for a session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	var out tokenResponse
	if err := s.api.Post(ctx, nil, "/api/auth/login", loginForm{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", ErrNoToken
	}
	return out.Token, nil
}

// Register creates an account.
func (s *Service) Register(ctx context.Context, form signupForm) error {
	return s.api.Post(ctx, nil, "/api/auth/register", form, nil)
}

// ForgotPassword requests a reset link and returns the service message.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	var out messageResponse
	if err := s.api.Post(ctx, nil, "/api/auth/forgot-password", forgotForm{Email: email}, &out); err != nil {
		return "", err
	}
	return out.text(), nil
}

// ResetPassword consumes a reset token.
func (s *Service) ResetPassword(ctx context.Context, token, password string) (string, error) {
	var out messageResponse
	body := map[string]string{"password": password}
	if err := s.api.Post(ctx, nil, "/api/auth/reset-password/"+url.PathEscape(token), body, &out); err != nil {
		return "", err
	}
	return out.text(), nil
}

// CurrentUser resolves the account behind creds.
func (s *Service) CurrentUser(ctx context.Context, creds apiclient.Credentials) (*User, error) {
	var user User
	if err := s.api.Get(ctx, creds, "/api/auth/user", &user); err != nil {
		return nil, err
	}
	return &user, nil
}
