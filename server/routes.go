package server

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func (s *Server) initRoutes() {
	// Dashboard screens are resolved from the path, so one handler serves them all
	s.RegisterRouteHandler("GET /", ChainMiddleware(s.DashboardHandler(), s.HTMLMiddleWare(s.ActivityMiddleware)...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare(s.SameOriginMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare(s.SameOriginMiddleware)...))

	// Dataset actions (require an active session)
	s.RegisterRouteHandler("POST "+RouteUpload, ChainMiddleware(s.UploadSubmissionHandler(), s.HTMLMiddleWare(s.SameOriginMiddleware, s.RequireSession, s.ActivityMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteDatasetDelete, ChainMiddleware(s.DeleteDatasetHandler(), s.HTMLMiddleWare(s.SameOriginMiddleware, s.RequireSession, s.ActivityMiddleware)...))
	s.RegisterRouteHandler("POST "+RouteDatasetStatus, ChainMiddleware(s.ReviewDatasetHandler(), s.HTMLMiddleWare(s.SameOriginMiddleware, s.RequireSession, s.ActivityMiddleware)...))

	// Browser beacons
	s.RegisterRouteHandler("POST "+RouteActivity, ChainMiddleware(s.ActivityHandler(), s.APIMiddleware(s.SameOriginMiddleware)...))
	s.RegisterRouteHandler("GET "+RouteSessionStatus, ChainMiddleware(s.SessionStatusHandler(), s.APIMiddleware()...))

	// Operational
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(s.services.Registry, promhttp.HandlerOpts{}))
	s.RegisterRouteFunc("GET "+RouteHealth, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	s.RegisterRouteHandler("GET "+RouteStatic, ChainMiddleware(s.serveFileHandler(), s.HTMLMiddleWare(s.CacheMiddleware)...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/static/")
		if err := writeAsset(w, filePath); err != nil {
			log.Debug().Err(err).Str("path", filePath).Msg("static file not served")
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
		}
	}
}
