package endpoints

import (
	"net/http"
	"strings"

	"github.com/mitarbeiterportal/portal/pkg/audit"
	"github.com/mitarbeiterportal/portal/pkg/authn"
	"github.com/mitarbeiterportal/portal/pkg/portal"
	"github.com/mitarbeiterportal/portal/pkg/server"
	"github.com/mitarbeiterportal/portal/pkg/server/middleware"
)

// LoginRequest is the body of POST /api/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginUser is the user part of a login response
type LoginUser struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	IsAdmin   bool   `json:"isAdmin"`
}

// LoginResponse represents the response from /api/login
type LoginResponse struct {
	Token string    `json:"token"`
	User  LoginUser `json:"user"`
}

// RegisterAuthEndpoints registers the unauthenticated register and login endpoints
func RegisterAuthEndpoints(s *server.Server) {
	s.API.HandleFunc("/register", handleRegister(s.Accounts)).Methods("POST")
	s.API.HandleFunc("/login", handleLogin(s.Accounts, s.Tokens)).Methods("POST")
}

func handleRegister(accounts server.AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req portal.Registration
		if !decodeJSON(w, r, &req) {
			return
		}

		user, err := accounts.Register(r.Context(), req)
		audit.Log(audit.RegistrationEvent{
			Email:        strings.TrimSpace(req.Email),
			ClientIP:     middleware.ClientIP(r).String(),
			Success:      err == nil,
			ErrorMessage: errorMessage(err),
		})
		if err != nil {
			respondWithServiceError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusCreated, user)
	}
}

func handleLogin(accounts server.AccountService, tokens *authn.Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		user, err := accounts.Authenticate(r.Context(), req.Email, req.Password)
		event := audit.LoginEvent{
			Email:    strings.TrimSpace(req.Email),
			ClientIP: middleware.ClientIP(r).String(),
			Success:  err == nil,
		}
		if err != nil {
			event.ErrorMessage = errorMessage(err)
			audit.Log(event)
			respondWithServiceError(w, r, err)
			return
		}

		token, err := tokens.Issue(user.Key, user.Email, user.IsAdmin)
		if err != nil {
			event.Success, event.ErrorMessage = false, "token issuance failed"
			audit.Log(event)
			respondWithServiceError(w, r, err)
			return
		}
		audit.Log(event)

		respondWithJSON(w, http.StatusOK, LoginResponse{
			Token: token,
			User: LoginUser{
				Email:     user.Email,
				FirstName: user.FirstName,
				LastName:  user.LastName,
				IsAdmin:   user.IsAdmin,
			},
		})
	}
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
