package api

// Backend route paths
// All remote endpoints are defined here to keep the paths in one place
const (
	// Account routes (unauthenticated)
	RouteLogin        = "/api/accounts/login/"
	RouteRefreshToken = "/api/accounts/refresh-token/"

	// Upload routes (bearer authenticated)
	RouteUploads       = "/api/uploads/files"
	RouteUpload        = "/api/uploads/files/%s"
	RouteUploadUpdate  = "/api/uploads/files/%s/update"
	RouteUploadStatus  = "/api/uploads/files/%s/status"
	RouteUploadColumns = "/api/uploads/files/%s/columns"
)
