// Package server provides the HTTP server of the portal API.
//
// The Server holds the router, the portal services behind small interfaces
// and the token issuer. Endpoints are registered by the endpoints
// subpackage:
//
//	srv := server.NewServer(server.FromPortal(services, health), tokens, cfg, host, port)
//	endpoints.RegisterAll(srv)
//	log.Fatal(srv.Start())
//
// Every request passes the gorilla/handlers access log and CORS handler
// and runs with the configured request timeout. All routes live under
// /api; everything except register, login, ping and status needs a bearer
// token, and /api/admin additionally needs the is_admin claim.
package server
