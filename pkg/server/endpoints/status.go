package endpoints

import (
	"log"
	"net/http"

	"github.com/mitarbeiterportal/portal/pkg/server"
	"github.com/mitarbeiterportal/portal/pkg/server/store"
)

// StatusResponse represents the response from /api/status
type StatusResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// RegisterStatusEndpoints registers the status endpoints (no auth required)
func RegisterStatusEndpoints(s *server.Server) {
	s.API.HandleFunc("/ping", handlePing()).Methods("GET")
	s.API.HandleFunc("/status", handleStatus(s.Health)).Methods("GET")
}

func handlePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"message": "pong"})
	}
}

func handleStatus(healthStore store.HealthStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := healthStore.CheckConnectivity(r.Context()); err != nil {
			log.Printf("status: database connectivity check failed: %v", err)
			respondWithJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "error", Database: "unreachable"})
			return
		}
		respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok", Database: "ok"})
	}
}
