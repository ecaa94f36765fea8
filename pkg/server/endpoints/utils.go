package endpoints

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mitarbeiterportal/portal/pkg/authn"
	"github.com/mitarbeiterportal/portal/pkg/identity"
	"github.com/mitarbeiterportal/portal/pkg/portal"
	"github.com/mitarbeiterportal/portal/pkg/vault"
)

// errorBody is the error envelope of every failed request.
type errorBody struct {
	Message string             `json:"message"`
	Fields  []vault.FieldError `json:"fields,omitempty"`
}

func respondWithError(w http.ResponseWriter, code int, message string, fields ...vault.FieldError) {
	respondWithJSON(w, code, map[string]interface{}{"error": errorBody{Message: message, Fields: fields}})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithServiceError maps portal and vault errors to HTTP statuses.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *vault.ValidationError
	switch {
	case errors.As(err, &verr):
		respondWithError(w, http.StatusBadRequest, "Validation failed", verr.Fields...)
	case errors.Is(err, portal.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, authn.ErrInvalidToken), errors.Is(err, authn.ErrTokenExpired):
		respondWithError(w, http.StatusUnauthorized, "Invalid token")
	case errors.Is(err, vault.ErrNotFound), errors.Is(err, vault.ErrHubNotFound):
		respondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, vault.ErrDuplicateActiveHub):
		respondWithError(w, http.StatusConflict, "Already exists")
	case errors.Is(err, vault.ErrAlreadyClosed), errors.Is(err, vault.ErrEntityInactive):
		respondWithError(w, http.StatusConflict, "No longer active")
	case errors.Is(err, vault.ErrConcurrentModification):
		respondWithError(w, http.StatusConflict, "Modified concurrently, please retry")
	default:
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

// decodePayload decodes a JSON object keeping integral numbers as int64.
func decodePayload(w http.ResponseWriter, r *http.Request) (vault.Payload, bool) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil || raw == nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON")
		return nil, false
	}
	payload := make(vault.Payload, len(raw))
	for k, v := range raw {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				payload[k] = i
				continue
			}
			f, err := n.Float64()
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "Invalid JSON")
				return nil, false
			}
			payload[k] = f
			continue
		}
		payload[k] = v
	}
	return payload, true
}

// pathKey parses the named route variable as a UUID.
func pathKey(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	key, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Not found")
		return uuid.Nil, false
	}
	return key, true
}

// asOf parses the optional as_of query parameter.
func asOf(w http.ResponseWriter, r *http.Request) (*time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return nil, true
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed",
			vault.FieldError{Field: "as_of", Message: "must be an RFC3339 timestamp"})
		return nil, false
	}
	return &at, true
}

// caller returns the identity set by the JWT middleware.
func caller(w http.ResponseWriter, r *http.Request) (*identity.Identity, bool) {
	id, ok := identity.Get(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Unable to determine identity")
		return nil, false
	}
	return id, true
}

// source is the rec_src written for changes made through the API.
func source(id *identity.Identity) string {
	return "api:" + id.Email
}
