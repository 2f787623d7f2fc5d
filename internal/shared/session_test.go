package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "crmdesk_session", "secret", time.Hour, false), mr
}

func commit(t *testing.T, sm *SessionManager, sess *Session) *http.Cookie {
	t.Helper()
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rr, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	for _, c := range rr.Result().Cookies() {
		if c.Name == sm.CookieName() {
			return c
		}
	}
	return nil
}

func load(t *testing.T, sm *SessionManager, cookie *http.Cookie) *Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	return sess
}

func TestCredentialSurvivesRoundTrip(t *testing.T) {
	sm, mr := newTestManager(t)

	sess := load(t, sm, nil)
	assert.False(t, sess.HasCredential())
	sess.SetCredential("tok-1")
	sess.Set(UserNameSessionKey, "Ada")
	cookie := commit(t, sm, sess)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.True(t, mr.Exists("session:"+sess.ID))

	again := load(t, sm, cookie)
	assert.Equal(t, sess.ID, again.ID)
	assert.Equal(t, "tok-1", again.Credential())
	assert.Equal(t, "Ada", again.UserName())

	again.ClearCredential()
	commit(t, sm, again)
	cleared := load(t, sm, cookie)
	assert.False(t, cleared.HasCredential())
	assert.Empty(t, cleared.UserName())
}

func TestUnknownCookieStartsFreshSession(t *testing.T) {
	sm, _ := newTestManager(t)

	sess := load(t, sm, &http.Cookie{Name: "crmdesk_session", Value: "attacker-chosen"})
	assert.NotEqual(t, "attacker-chosen", sess.ID)
	assert.False(t, sess.HasCredential())
}

func TestRenewDropsOldID(t *testing.T) {
	sm, mr := newTestManager(t)

	sess := load(t, sm, nil)
	sess.Set(CSRFSessionKey, "csrf")
	cookie := commit(t, sm, sess)
	oldID := sess.ID

	sess = load(t, sm, cookie)
	sm.Renew(sess)
	sess.SetCredential("tok")
	commit(t, sm, sess)

	assert.NotEqual(t, oldID, sess.ID)
	assert.False(t, mr.Exists("session:"+oldID))
	assert.Empty(t, sess.Get(CSRFSessionKey))
}

func TestDestroyExpiresCookie(t *testing.T) {
	sm, mr := newTestManager(t)

	sess := load(t, sm, nil)
	sess.SetCredential("tok")
	cookie := commit(t, sm, sess)

	sess = load(t, sm, cookie)
	sm.Destroy(sess)
	expired := commit(t, sm, sess)
	require.NotNil(t, expired)
	assert.Less(t, expired.MaxAge, 0)
	assert.False(t, mr.Exists("session:"+sess.ID))
}

func TestFlashesPopInOrder(t *testing.T) {
	sm, _ := newTestManager(t)

	sess := load(t, sm, nil)
	sess.AddFlash(FlashMessage{Kind: "success", Message: "one"})
	sess.AddFlash(FlashMessage{Kind: "error", Message: "two"})
	cookie := commit(t, sm, sess)

	sess = load(t, sm, cookie)
	assert.Equal(t, "one", sess.PopFlash().Message)
	assert.Equal(t, "two", sess.PopFlash().Message)
	assert.Nil(t, sess.PopFlash())
}

func TestNilSessionIsAnonymous(t *testing.T) {
	var sess *Session
	assert.False(t, sess.HasCredential())
	assert.Empty(t, sess.UserName())
	assert.Nil(t, sess.PopFlash())
	sess.ClearCredential()
	assert.Nil(t, SessionFromContext(context.Background()))
}
