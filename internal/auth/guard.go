package auth

import (
	"net/http"

	"github.com/crmdesk/crmdesk/internal/page"
	"github.com/crmdesk/crmdesk/internal/shared"
)

// RequireCredential renders the protected subtree only while the session
// holds a credential. The check is local and synchronous: a stale token
// passes here and is caught by the first API call that gets rejected.
func RequireCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if !sess.HasCredential() {
			http.Redirect(w, r, page.LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
