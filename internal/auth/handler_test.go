package auth_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crmdesk/crmdesk/internal/auth"
	"github.com/crmdesk/crmdesk/internal/shared"
	"github.com/crmdesk/crmdesk/internal/testing/fakecrm"
	_ "github.com/crmdesk/crmdesk/testing"
)

func newAuthConsole(t *testing.T) *fakecrm.Console {
	t.Helper()
	c := fakecrm.NewConsole(t)
	handler := auth.NewHandler(nil, auth.NewService(c.Client), c.Pages, c.Sessions)
	handler.MountRoutes(c.Router)
	c.Router.With(auth.RequireCredential).Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("dashboard"))
	})
	return c
}

func TestLoginPage(t *testing.T) {
	c := newAuthConsole(t)

	res := c.Do(http.MethodGet, "/login", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `action="/login"`)
	assert.NotEmpty(t, c.Session().Get(shared.CSRFSessionKey))
}

func TestLoginStoresCredentialAndUserName(t *testing.T) {
	c := newAuthConsole(t)
	c.API.AddUser("Ada", "Lovelace", "ada@example.com", "secret1")

	res := c.Do(http.MethodPost, "/login", url.Values{"email": {"ada@example.com"}, "password": {"secret1"}})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))

	sess := c.Session()
	assert.True(t, sess.HasCredential())
	assert.Equal(t, "Ada", sess.UserName())

	calls := c.API.Calls(http.MethodGet, "/api/auth/user")
	require.Len(t, calls, 1)
	assert.Equal(t, sess.Credential(), calls[0].Header.Get(fakecrm.AuthHeader))

	res = c.Do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "dashboard", res.Body.String())
}

func TestLoginRenewsSessionID(t *testing.T) {
	c := newAuthConsole(t)
	c.API.AddUser("Ada", "Lovelace", "ada@example.com", "secret1")

	c.Do(http.MethodGet, "/login", nil)
	before := c.Session().ID

	c.Do(http.MethodPost, "/login", url.Values{"email": {"ada@example.com"}, "password": {"secret1"}})
	assert.NotEqual(t, before, c.Session().ID)
}

func TestLoginInvalidCredentials(t *testing.T) {
	c := newAuthConsole(t)
	c.API.AddUser("Ada", "Lovelace", "ada@example.com", "secret1")

	res := c.Do(http.MethodPost, "/login", url.Values{"email": {"ada@example.com"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Login failed. Please check your credentials.")
	assert.False(t, c.Session().HasCredential())
}

func TestLoginValidatesBeforeCallingAPI(t *testing.T) {
	c := newAuthConsole(t)

	res := c.Do(http.MethodPost, "/login", url.Values{"email": {"not-an-email"}, "password": {""}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Enter a valid email address.")
	assert.Contains(t, body, "This field is required.")
	assert.Empty(t, c.API.Calls(http.MethodPost, "/api/auth/login"))
}

func TestLoginReportsUnreachableService(t *testing.T) {
	c := newAuthConsole(t)
	c.API.Close()

	res := c.Do(http.MethodPost, "/login", url.Values{"email": {"ada@example.com"}, "password": {"secret1"}})
	assert.Equal(t, http.StatusBadGateway, res.Code)
	assert.Contains(t, res.Body.String(), "unreachable")
}

func TestSignupRedirectsToLogin(t *testing.T) {
	c := newAuthConsole(t)

	res := c.Do(http.MethodPost, "/signup", url.Values{
		"first_name": {"Grace"},
		"last_name":  {"Hopper"},
		"email":      {"grace@example.com"},
		"password":   {"cobol60"},
	})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))
	assert.False(t, c.Session().HasCredential(), "signup must not sign the user in")

	res = c.Do(http.MethodGet, "/login", nil)
	assert.Contains(t, res.Body.String(), "Signup successful! You can now log in.")

	res = c.Do(http.MethodPost, "/login", url.Values{"email": {"grace@example.com"}, "password": {"cobol60"}})
	assert.Equal(t, http.StatusSeeOther, res.Code)
}

func TestSignupShowsServiceMessage(t *testing.T) {
	c := newAuthConsole(t)
	c.API.AddUser("Grace", "Hopper", "grace@example.com", "cobol60")

	res := c.Do(http.MethodPost, "/signup", url.Values{
		"first_name": {"Grace"},
		"last_name":  {"Hopper"},
		"email":      {"grace@example.com"},
		"password":   {"cobol60"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.Body.String(), "User already exists")
}

func TestSignupFieldErrors(t *testing.T) {
	c := newAuthConsole(t)

	res := c.Do(http.MethodPost, "/signup", url.Values{"email": {"grace@example.com"}, "password": {"abc"}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Must be at least 6 characters.")
	assert.Empty(t, c.API.Calls(http.MethodPost, "/api/auth/register"))
}

func TestForgotPasswordShowsNotice(t *testing.T) {
	c := newAuthConsole(t)

	res := c.Do(http.MethodPost, "/forgot-password", url.Values{"email": {"ada@example.com"}})
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "Password reset link sent to your email.")
}

func TestResetPassword(t *testing.T) {
	c := newAuthConsole(t)

	res := c.Do(http.MethodPost, "/reset-password/abc123", url.Values{"password": {"newpass"}, "password2": {"other"}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Passwords do not match.")
	assert.Empty(t, c.API.Calls(http.MethodPost, "/api/auth/reset-password/abc123"))

	res = c.Do(http.MethodPost, "/reset-password/abc123", url.Values{"password": {"newpass"}, "password2": {"newpass"}})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))
	calls := c.API.Calls(http.MethodPost, "/api/auth/reset-password/abc123")
	require.Len(t, calls, 1)
	assert.Equal(t, "newpass", calls[0].Body["password"])

	res = c.Do(http.MethodPost, "/reset-password/expired", url.Values{"password": {"newpass"}, "password2": {"newpass"}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.Body.String(), "invalid or has expired")
}

func TestLogoutClearsSession(t *testing.T) {
	c := newAuthConsole(t)
	c.SignIn("ada@example.com")
	require.True(t, c.Session().HasCredential())

	res := c.Do(http.MethodPost, "/logout", url.Values{})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))
	assert.False(t, c.Session().HasCredential())

	res = c.Do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusSeeOther, res.Code)
}
