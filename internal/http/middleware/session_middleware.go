package middleware

import (
	"net/http"

	"github.com/supportdesk/ticketsync/internal/http/response"
	"github.com/supportdesk/ticketsync/internal/session"
)

// RequireSession rejects requests while no session is established. The API
// serves local views of synced state, so there is nothing to show a logged
// out caller.
func RequireSession(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessions.Authenticated() {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "no active session", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission gates a route on session.HasPermission: any one of the
// listed permissions grants access.
func RequirePermission(sessions *session.Manager, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessions.Authenticated() {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "no active session", nil)
				return
			}
			if !sessions.HasPermission(permissions...) {
				response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient permission", map[string]any{"anyOf": permissions})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
