package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/bimi-admin/sessions"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeySession stores a copy of the session the request was served under
	ContextKeySession ContextKey = "session"
)

// RequireSession is middleware for dashboard actions. Without an active
// session the browser is sent to the login page.
func (s *Server) RequireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.services.Store.Session()
		if !sess.Active() {
			s.flash.set(flashWarning, "Please log in to continue.")
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), ContextKeySession, sess)
		next(w, r.WithContext(ctx))
	}
}

// sessionFrom returns the session stored by RequireSession, falling back to
// the store for routes that do not use it.
func (s *Server) sessionFrom(r *http.Request) sessions.Session {
	if sess, ok := r.Context().Value(ContextKeySession).(sessions.Session); ok {
		return sess
	}
	return s.services.Store.Session()
}
