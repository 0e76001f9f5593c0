package server

import (
	"net/http"

	"github.com/jrsteele09/bimi-admin/api"
	"github.com/jrsteele09/bimi-admin/internal/errors"
	"github.com/jrsteele09/bimi-admin/screens"
	"github.com/jrsteele09/bimi-admin/sessions"
	"github.com/rs/zerolog/log"
)

const messageLoginFailed = "Login failed. Please check your credentials and try again."

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.services.Store.Session()
		if sess.Active() {
			http.Redirect(w, r, screens.Landing(sess.Role()).Path(), http.StatusSeeOther)
			return
		}

		data := s.pageData(sess, screens.Login)
		data.Login = &LoginView{}
		s.render(w, screens.Login, http.StatusOK, data)
	}
}

// LoginSubmissionHandler processes the login form submission
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		creds := api.Credentials{
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
		}

		result, err := s.services.Auth.Login(r.Context(), creds)
		if err != nil {
			log.Warn().Err(err).Str("email", creds.Email).Msg("login failed")
			s.renderLoginError(w, creds.Email, err)
			return
		}

		sess := result.Session()
		if err := s.services.Store.Save(sess); err != nil {
			log.Err(err).Msg("Failed to store session")
			s.renderLoginError(w, creds.Email, err)
			return
		}

		log.Info().Str("user", sess.User.DisplayName()).Str("role", string(sess.Role())).Msg("logged in")
		http.Redirect(w, r, screens.Landing(sess.Role()).Path(), http.StatusSeeOther)
	}
}

func (s *Server) renderLoginError(w http.ResponseWriter, email string, err error) {
	status := http.StatusUnauthorized
	msg := messageLoginFailed

	var apiErr *api.Error
	switch {
	case errors.Is(err, errors.ErrValidation):
		status = http.StatusBadRequest
		msg = "Email and password are required."
	case errors.As(err, &apiErr):
		if apiErr.Detail != "" {
			msg = apiErr.Detail
		}
	case errors.Is(err, errors.ErrTransport):
		status = http.StatusBadGateway
		msg = api.MessageNetwork
	default:
		status = http.StatusInternalServerError
	}

	data := s.pageData(sessions.Session{}, screens.Login)
	data.Login = &LoginView{Email: email, Error: msg}
	s.render(w, screens.Login, status, data)
}

// LogoutHandler ends the session (POST /logout)
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.services.Store.Clear(); err != nil {
			log.Err(err).Msg("Failed to remove stored session")
		}
		s.flash.set(flashSuccess, "You have been logged out.")
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	}
}
