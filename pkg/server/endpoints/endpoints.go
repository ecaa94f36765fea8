// Package endpoints registers the HTTP handlers of the portal API on a
// server.Server. Handlers decode the request, call a portal service with
// the caller's user key from the token and map service errors to HTTP
// statuses.
package endpoints

import "github.com/mitarbeiterportal/portal/pkg/server"

// RegisterAll registers every API endpoint
func RegisterAll(s *server.Server) {
	RegisterStatusEndpoints(s)
	RegisterAuthEndpoints(s)
	RegisterProfileEndpoints(s)
	RegisterProjectsEndpoints(s)
	RegisterCustomersEndpoints(s)
	RegisterTimeEntriesEndpoints(s)
	RegisterDashboardEndpoints(s)
	RegisterAdminEndpoints(s)
}
