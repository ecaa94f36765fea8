package endpoints

import (
	"net/http"

	"github.com/mitarbeiterportal/portal/pkg/server"
)

func RegisterDashboardEndpoints(s *server.Server) {
	dashboardRouter := s.API.PathPrefix("/dashboard").Subrouter()
	dashboardRouter.Use(s.JWTMiddleware.Middleware)

	dashboardRouter.HandleFunc("/summary", handleDashboardSummary(s.Dashboard)).Methods("GET")
}

func handleDashboardSummary(dashboard server.DashboardService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		summary, err := dashboard.Summary(r.Context(), id.UserKey)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, summary)
	}
}
