package app

import (
	"context"
	"time"

	"github.com/jrsteele09/bimi-admin/api"
	"github.com/jrsteele09/bimi-admin/datasets"
	"github.com/jrsteele09/bimi-admin/gateway"
	"github.com/jrsteele09/bimi-admin/idle"
	"github.com/jrsteele09/bimi-admin/internal/config"
	"github.com/jrsteele09/bimi-admin/internal/errors"
	"github.com/jrsteele09/bimi-admin/server"
	"github.com/jrsteele09/bimi-admin/sessions"
	"github.com/jrsteele09/bimi-admin/sessions/filestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// App holds one profile's collaborators, wired the same way for the
// dashboard and for the CLI commands.
type App struct {
	Config   config.Config
	Repo     *filestore.FileRepo
	Store    *sessions.Store
	Auth     *api.AuthClient
	Gateway  *gateway.Gateway
	Datasets *datasets.Service
	Idle     *idle.Timer
	Registry *prometheus.Registry

	server      *server.Server
	unsubscribe func()
}

func New(c config.Config) (*App, error) {
	repo, err := filestore.New(c.GetSessionFile(), filestore.WithPassphrase(c.GetSessionPassphrase()))
	if err != nil {
		return nil, errors.Wrapf(err, "open session file")
	}

	a := &App{
		Config:   c,
		Repo:     repo,
		Store:    sessions.NewStore(repo),
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Refresh calls go out on a plain client so they never re-enter the gateway
	baseURL := c.GetAPIBaseURL()
	a.Auth = api.NewAuthClient(baseURL, api.NewHTTPClient(c.GetHTTPTimeout()))
	a.Gateway = gateway.New(a.Store, a.Auth,
		gateway.WithHTTPClient(api.NewHTTPClient(c.GetHTTPTimeout())),
		gateway.WithMetrics(gateway.NewMetrics(a.Registry)),
	)
	a.Datasets = datasets.NewService(api.NewUploadsClient(baseURL, a.Gateway))
	a.Idle = idle.New(a.Store, c.GetIdleTimeout(), idle.WithNotifier(a.sessionExpired))

	a.unsubscribe = a.Store.Subscribe(a.onSessionEvent)

	log.Debug().
		Str("api", baseURL).
		Str("session_file", repo.Path()).
		Bool("encrypted", repo.Encrypted()).
		Dur("idle_timeout", c.GetIdleTimeout()).
		Msg("profile loaded")
	return a, nil
}

// Server builds the dashboard on first use.
func (a *App) Server() (*server.Server, error) {
	if a.server != nil {
		return a.server, nil
	}
	srv, err := server.New(a.Config, server.Services{
		Store:    a.Store,
		Auth:     a.Auth,
		Datasets: a.Datasets,
		Idle:     a.Idle,
		Registry: a.Registry,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create dashboard server")
	}
	a.server = srv
	return srv, nil
}

// Watch follows the session file so a login or logout made by another
// process shows up here. It blocks until ctx is done.
func (a *App) Watch(ctx context.Context) error {
	return a.Repo.Watch(ctx, a.Store.Reload)
}

// Close stops the idle timer and detaches from the store.
func (a *App) Close() {
	a.Idle.Stop()
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

// A different user, or no user, must not see the previous list.
func (a *App) onSessionEvent(e sessions.Event) {
	switch e.Kind {
	case sessions.EventSaved, sessions.EventCleared, sessions.EventReloaded:
		a.Datasets.Invalidate()
	}
}

func (a *App) sessionExpired(idleFor time.Duration) {
	log.Info().Dur("idle_for", idleFor).Msg("session expired after inactivity")
	if a.server != nil {
		a.server.SessionExpired(idleFor)
	}
}
