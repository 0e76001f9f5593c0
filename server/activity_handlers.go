package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/bimi-admin/idle"
	"github.com/rs/zerolog/log"
)

// ActivityHandler receives user input beacons from the browser (POST /activity)
func (s *Server) ActivityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activity, ok := idle.ParseActivity(r.FormValue("type"))
		if !ok {
			http.Error(w, "unknown activity", http.StatusBadRequest)
			return
		}
		if !s.services.Store.Active() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if s.services.Idle != nil {
			s.services.Idle.Touch(activity)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SessionStatus is polled by open pages so they follow a logout that
// happened elsewhere.
type SessionStatus struct {
	Active           bool   `json:"active"`
	User             string `json:"user,omitempty"`
	Role             string `json:"role,omitempty"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

// SessionStatusHandler reports whether the session is still active (GET /session)
func (s *Server) SessionStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.services.Store.Session()
		status := SessionStatus{Active: sess.Active()}
		if status.Active {
			status.User = sess.User.DisplayName()
			status.Role = string(sess.Role())
			if s.services.Idle != nil {
				status.RemainingSeconds = int(s.services.Idle.Remaining().Seconds())
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Err(err).Msg("Failed to write session status")
		}
	}
}
