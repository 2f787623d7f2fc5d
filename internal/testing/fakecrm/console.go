package fakecrm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/crmdesk/crmdesk/internal/apiclient"
	"github.com/crmdesk/crmdesk/internal/page"
	"github.com/crmdesk/crmdesk/internal/shared"
	"github.com/crmdesk/crmdesk/internal/view"
)

// Console drives console handlers the way a browser would: one cookie
// bound session stored in miniredis, talking to a fake CRM API.
type Console struct {
	T         testing.TB
	API       *Server
	Client    *apiclient.Client
	Sessions  *shared.SessionManager
	CSRF      *shared.CSRFManager
	Templates *view.Engine
	Pages     *page.Renderer
	Router    chi.Router

	cookie *http.Cookie
}

// NewConsole wires a session store, API client and renderer around a fresh
// fake API. Handlers under test mount themselves on Router.
func NewConsole(t testing.TB) *Console {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("templates: %v", err)
	}
	api := New(t)
	c := &Console{
		T:   t,
		API: api,
		Client: apiclient.New(apiclient.Config{
			BaseURL: api.URL,
			Timeout: 2 * time.Second,
			Retry:   apiclient.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		}),
		Sessions:  shared.NewSessionManager(rdb, "crmdesk_session", "test-secret", time.Hour, false),
		CSRF:      shared.NewCSRFManager("test-csrf"),
		Templates: templates,
	}
	c.Pages = page.NewRenderer(nil, templates, c.CSRF)
	c.Router = chi.NewRouter()
	c.Router.Use(c.session)
	return c
}

func (c *Console) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := c.Sessions.Load(r.Context(), r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		req := r.WithContext(shared.ContextWithSession(r.Context(), sess))
		inner := httptest.NewRecorder()
		next.ServeHTTP(inner, req)
		if err := c.Sessions.Commit(context.Background(), w, req, sess); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for k, v := range inner.Header() {
			w.Header()[k] = v
		}
		w.WriteHeader(inner.Code)
		_, _ = w.Write(inner.Body.Bytes())
	})
}

// Do sends one request carrying the current session cookie. A non-nil form
// is posted urlencoded.
func (c *Console) Do(method, target string, form url.Values) *httptest.ResponseRecorder {
	c.T.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rr := httptest.NewRecorder()
	c.Router.ServeHTTP(rr, req)
	for _, ck := range rr.Result().Cookies() {
		if ck.Name != c.Sessions.CookieName() {
			continue
		}
		if ck.MaxAge < 0 {
			c.cookie = nil
		} else {
			c.cookie = ck
		}
	}
	return rr
}

// Session loads the stored session behind the current cookie.
func (c *Console) Session() *shared.Session {
	c.T.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	sess, err := c.Sessions.Load(context.Background(), req)
	if err != nil {
		c.T.Fatalf("load session: %v", err)
	}
	return sess
}

// SignIn stores a valid credential for email in the session and returns it.
func (c *Console) SignIn(email string) string {
	c.T.Helper()
	token := c.API.IssueToken(email)
	c.SetCredential(token)
	return token
}

// SetCredential stores token in the session as the login page would.
func (c *Console) SetCredential(token string) {
	c.T.Helper()
	sess := c.Session()
	sess.SetCredential(token)
	rr := httptest.NewRecorder()
	if err := c.Sessions.Commit(context.Background(), rr, httptest.NewRequest(http.MethodGet, "/", nil), sess); err != nil {
		c.T.Fatalf("commit session: %v", err)
	}
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == c.Sessions.CookieName() {
			c.cookie = ck
		}
	}
}
