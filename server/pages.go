package server

import (
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/bimi-admin/api"
	"github.com/jrsteele09/bimi-admin/datasets"
	"github.com/jrsteele09/bimi-admin/internal/errors"
	"github.com/jrsteele09/bimi-admin/screens"
	"github.com/jrsteele09/bimi-admin/sessions"
	"github.com/rs/zerolog/log"
)

const contentTypeHTML = "text/html; charset=utf-8"

var pageTemplates = map[screens.Screen]string{
	screens.Login:      "login.html",
	screens.Manage:     "manage.html",
	screens.Upload:     "upload.html",
	screens.Restricted: "restricted.html",
	screens.NotFound:   "notfound.html",
}

func parsePages() (map[screens.Screen]*template.Template, error) {
	pages := make(map[screens.Screen]*template.Template, len(pageTemplates))
	for screen, name := range pageTemplates {
		tmpl, err := ParseTemplate(name)
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s template", name)
		}
		pages[screen] = tmpl
	}
	return pages, nil
}

// PageData is the model shared by every page.
type PageData struct {
	AppName            string
	Title              string
	Screen             string
	User               *sessions.User
	Role               sessions.RoleType
	Menu               []screens.MenuItem
	Flash              *Flash
	IdleTimeoutSeconds int

	Login  *LoginView
	Manage *ManageView
	Upload *UploadView
}

type LoginView struct {
	Email string
	Error string
}

type ManageView struct {
	Records   []datasets.Record
	Counts    datasets.Counts
	Search    string
	Status    string
	Sort      datasets.SortOrder
	CanReview bool
	Error     string
}

// Filtering reports whether the visible list is narrower than the full one.
func (v *ManageView) Filtering() bool {
	return v.Search != "" || (v.Status != "" && v.Status != datasets.StatusAll)
}

// ReturnTo is the manage URL with the current filters, posted with actions.
func (v *ManageView) ReturnTo() string {
	return v.link(false)
}

// RefreshURL reloads the list from the backend, keeping the filters.
func (v *ManageView) RefreshURL() string {
	return v.link(true)
}

func (v *ManageView) link(refresh bool) string {
	q := url.Values{}
	if v.Search != "" {
		q.Set("search", v.Search)
	}
	if v.Status != "" && v.Status != datasets.StatusAll {
		q.Set("status", v.Status)
	}
	if v.Sort != "" && v.Sort != datasets.SortNewest {
		q.Set("sort", string(v.Sort))
	}
	if refresh {
		q.Set("refresh", "1")
	}
	if len(q) == 0 {
		return RouteManage
	}
	return RouteManage + "?" + q.Encode()
}

type UploadView struct {
	TableName       string
	DataDescription string
	Accept          string
	Error           string
}

func newUploadView() *UploadView {
	return &UploadView{Accept: strings.Join(datasets.AcceptedExtensions, ",")}
}

func (s *Server) pageData(sess sessions.Session, screen screens.Screen) PageData {
	data := PageData{
		AppName: s.config.GetAppName(),
		Title:   screen.Title(),
		Screen:  screen.String(),
		User:    sess.User,
		Role:    sess.Role(),
		Flash:   s.flash.take(),
	}
	if sess.Active() {
		data.Menu = screens.Menu(sess.Role(), screen)
		data.IdleTimeoutSeconds = int(s.config.GetIdleTimeout().Seconds())
	}
	return data
}

func (s *Server) render(w http.ResponseWriter, screen screens.Screen, status int, data PageData) {
	tmpl, ok := s.pages[screen]
	if !ok {
		http.Error(w, "Page not available", http.StatusInternalServerError)
		return
	}
	s.views.WithLabelValues(screen.String()).Inc()

	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		log.Err(err).Stringer("screen", screen).Msg("Failed to render page")
	}
}

// DashboardHandler serves every dashboard screen, choosing the screen from
// the path, the session and the user's role.
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.services.Store.Session()
		screen := screens.Resolve(r.URL.Path, sess)

		switch screen {
		case screens.Login:
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		case screens.Manage, screens.Upload:
			if r.URL.Path != screen.Path() {
				http.Redirect(w, r, screen.Path(), http.StatusSeeOther)
				return
			}
		}

		data := s.pageData(sess, screen)
		status := http.StatusOK
		switch screen {
		case screens.Manage:
			view, err := s.manageView(r, sess)
			if sessionLost(err) {
				s.sessionEnded(w, r)
				return
			}
			data.Manage = view
		case screens.Upload:
			data.Upload = newUploadView()
		case screens.Restricted:
			if r.URL.Path != RouteRestricted {
				status = http.StatusForbidden
			}
		case screens.NotFound:
			status = http.StatusNotFound
		}
		s.render(w, screen, status, data)
	}
}

func (s *Server) manageView(r *http.Request, sess sessions.Session) (*ManageView, error) {
	q := r.URL.Query()
	view := &ManageView{
		Search:    strings.TrimSpace(q.Get("search")),
		Status:    q.Get("status"),
		Sort:      datasets.ParseSortOrder(q.Get("sort")),
		CanReview: sess.Role().CanReview(),
	}
	if view.Status == "" {
		view.Status = datasets.StatusAll
	}
	if q.Get("refresh") != "" {
		s.services.Datasets.Invalidate()
	}

	all, err := s.services.Datasets.List(r.Context())
	if err != nil {
		log.Err(err).Msg("Failed to load datasets")
		view.Error = api.DetailOf(err)
		return view, err
	}
	view.Counts = datasets.CountByStatus(all)
	view.Records = datasets.Query{Search: view.Search, Status: view.Status, Sort: view.Sort}.Apply(all)
	return view, nil
}

// sessionLost reports errors after which the gateway has already cleared
// the session.
func sessionLost(err error) bool {
	return errors.Is(err, errors.ErrNotAuthenticated) ||
		errors.Is(err, errors.ErrNoRefreshToken) ||
		errors.Is(err, errors.ErrRefreshFailed) ||
		errors.Is(err, errors.ErrSessionExpired)
}

func (s *Server) sessionEnded(w http.ResponseWriter, r *http.Request) {
	s.flash.set(flashWarning, api.MessageSessionEnded)
	http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
}
