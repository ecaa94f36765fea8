package endpoints

import (
	"net/http"

	"github.com/mitarbeiterportal/portal/pkg/audit"
	"github.com/mitarbeiterportal/portal/pkg/portal"
	"github.com/mitarbeiterportal/portal/pkg/server"
)

// RegisterProfileEndpoints registers the endpoints of the calling user
func RegisterProfileEndpoints(s *server.Server) {
	authenticated := s.JWTMiddleware.Middleware

	s.API.Handle("/profile", authenticated(handleGetProfile(s.Accounts))).Methods("GET")
	s.API.Handle("/profile", authenticated(handleUpdateProfile(s.Accounts))).Methods("PUT")
	s.API.Handle("/change-password", authenticated(handleChangePassword(s.Accounts))).Methods("POST")
}

func handleGetProfile(accounts server.AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		at, ok := asOf(w, r)
		if !ok {
			return
		}

		user, err := accounts.Profile(r.Context(), id.UserKey, at)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, user)
	}
}

func handleUpdateProfile(accounts server.AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		patch, ok := decodePayload(w, r)
		if !ok {
			return
		}

		user, err := accounts.UpdateProfile(r.Context(), id.UserKey, patch)
		logWrite(id, portal.KindUser.String(), id.UserKey.String(), "update", err)
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, user)
	}
}

func handleChangePassword(accounts server.AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}
		var req portal.PasswordChange
		if !decodeJSON(w, r, &req) {
			return
		}

		err := accounts.ChangePassword(r.Context(), id.UserKey, req)
		audit.Log(audit.PasswordChangeEvent{
			UserID:       id.Email,
			ClientIP:     id.ClientIP(),
			Success:      err == nil,
			ErrorMessage: errorMessage(err),
		})
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
	}
}
