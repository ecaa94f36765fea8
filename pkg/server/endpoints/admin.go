package endpoints

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mitarbeiterportal/portal/pkg/portal"
	"github.com/mitarbeiterportal/portal/pkg/server"
	"github.com/mitarbeiterportal/portal/pkg/server/middleware"
	"github.com/mitarbeiterportal/portal/pkg/vault"
)

// RegisterAdminEndpoints registers the endpoints reserved to administrators
func RegisterAdminEndpoints(s *server.Server) {
	adminRouter := s.API.PathPrefix("/admin").Subrouter()
	adminRouter.Use(s.JWTMiddleware.Middleware)
	adminRouter.Use(middleware.RequireAdmin(s.Accounts))

	adminRouter.HandleFunc("/users", handleListUsers(s.Accounts)).Methods("GET")
	adminRouter.HandleFunc("/users/{id}", handleDeleteUser(s.Accounts)).Methods("DELETE")
	adminRouter.HandleFunc("/history/{kind}/{id}", handleEntityHistory(s.History)).Methods("GET")
}

func handleListUsers(accounts server.AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := accounts.List(r.Context())
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		if users == nil {
			users = []portal.User{}
		}
		respondWithJSON(w, http.StatusOK, users)
	}
}

func handleDeleteUser(accounts server.AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		key, ok := pathKey(w, r, "id")
		if !ok {
			return
		}

		err := accounts.Delete(r.Context(), key)
		logWrite(id, portal.KindUser.String(), key.String(), "delete", err)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleEntityHistory(history server.HistoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := portal.KindString(mux.Vars(r)["kind"])
		if err != nil {
			respondWithServiceError(w, r, vault.NewValidationError("kind", "must be one of %v", portal.KindStrings()))
			return
		}
		key, ok := pathKey(w, r, "id")
		if !ok {
			return
		}
		at, ok := asOf(w, r)
		if !ok {
			return
		}

		h, err := history.Entity(r.Context(), kind, key, at)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, h)
	}
}
