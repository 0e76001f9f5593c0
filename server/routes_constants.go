package server

import "github.com/jrsteele09/bimi-admin/screens"

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Login & Logout
	RouteLogin  = screens.PathLogin
	RouteLogout = "/logout"

	// Dashboard Routes
	RouteManage     = screens.PathManage
	RouteUpload     = screens.PathUpload
	RouteRestricted = screens.PathRestricted

	// Dataset Action Routes
	RouteDatasetDelete = "/dashboard/datasets/{id}/delete"
	RouteDatasetStatus = "/dashboard/datasets/{id}/status"

	// Browser Beacon Routes
	RouteActivity      = "/activity"
	RouteSessionStatus = "/session"

	// Operational Routes
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"

	// Static Asset Routes (patterns)
	RouteStatic = "/static/{file}"
)
