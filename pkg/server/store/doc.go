// Package store provides the storage abstractions the HTTP server needs
// beyond the portal services.
//
// Portal data is read and written through pkg/portal, which sits on the
// vault stores. What remains here is the database health check used by
// GET /api/status.
//
// # Usage
//
//	health := gormstore.NewHealthStore(db)
//	if err := health.CheckConnectivity(ctx); err != nil {
//	    // report 503
//	}
package store
