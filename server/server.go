package server

import (
	"context"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/bimi-admin/api"
	"github.com/jrsteele09/bimi-admin/datasets"
	"github.com/jrsteele09/bimi-admin/idle"
	"github.com/jrsteele09/bimi-admin/internal/config"
	"github.com/jrsteele09/bimi-admin/screens"
	"github.com/jrsteele09/bimi-admin/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Authenticator performs the credential exchange for the login form.
type Authenticator interface {
	Login(ctx context.Context, creds api.Credentials) (api.LoginResult, error)
}

// Services are the collaborators the dashboard renders and acts on.
type Services struct {
	Store    *sessions.Store
	Auth     Authenticator
	Datasets *datasets.Service
	Idle     *idle.Timer
	Registry *prometheus.Registry
}

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	services Services
	flash    flashBox
	views    *prometheus.CounterVec
	pages    map[screens.Screen]*template.Template
}

func New(config config.Config, services Services) (*Server, error) {
	if services.Registry == nil {
		services.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   config,
		services: services,
		views: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bimi",
			Subsystem: "dashboard",
			Name:      "page_views_total",
			Help:      "Rendered dashboard pages by screen.",
		}, []string{"screen"}),
	}
	s.env = config.GetEnv()
	if err := services.Registry.Register(s.views); err != nil {
		return nil, err
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	s.pages = pages

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// SessionExpired is the idle timer's notifier: the next page the user sees
// explains why they were logged out.
func (s *Server) SessionExpired(idleFor time.Duration) {
	s.flash.set(flashWarning, "Your session expired after "+idleFor.Round(time.Second).String()+" of inactivity. Please log in again.")
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			log.Debug().Str("path", parts[0]).Msg("route")
		}
	}
}

type flashKind string

const (
	flashSuccess flashKind = "success"
	flashError   flashKind = "error"
	flashWarning flashKind = "warning"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    flashKind
	Message string
}

// flashBox holds a single pending message. The dashboard serves one
// profile, so there is one reader.
type flashBox struct {
	mu      sync.Mutex
	pending *Flash
}

func (f *flashBox) set(kind flashKind, msg string) {
	f.mu.Lock()
	f.pending = &Flash{Kind: kind, Message: msg}
	f.mu.Unlock()
}

func (f *flashBox) take() *Flash {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = nil
	return out
}
