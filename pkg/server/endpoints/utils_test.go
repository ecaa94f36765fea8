package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitarbeiterportal/portal/pkg/portal"
	"github.com/mitarbeiterportal/portal/pkg/vault"
)

func TestRespondWithServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", vault.NewValidationError("email", "is required"), http.StatusBadRequest},
		{"credentials", portal.ErrInvalidCredentials, http.StatusUnauthorized},
		{"not found", fmt.Errorf("read: %w", vault.ErrNotFound), http.StatusNotFound},
		{"hub not found", vault.ErrHubNotFound, http.StatusNotFound},
		{"duplicate", vault.ErrDuplicateActiveHub, http.StatusConflict},
		{"already closed", vault.ErrAlreadyClosed, http.StatusConflict},
		{"inactive", vault.ErrEntityInactive, http.StatusConflict},
		{"concurrent", vault.ErrConcurrentModification, http.StatusConflict},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			respondWithServiceError(w, httptest.NewRequest("GET", "/api/x", nil), tt.err)
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestRespondWithServiceError_Fields(t *testing.T) {
	verr := vault.NewValidationError("end_time", "must be after start_time")
	verr.Add("pause_minutes", "must be less than the duration")

	w := httptest.NewRecorder()
	respondWithServiceError(w, httptest.NewRequest("POST", "/api/time-entries", nil), verr)

	body := decodeError(t, w)
	assert.Equal(t, "Validation failed", body.Error.Message)
	require.Len(t, body.Error.Fields, 2)
	assert.Equal(t, "end_time", body.Error.Fields[0].Field)
	assert.Equal(t, "pause_minutes", body.Error.Fields[1].Field)
}

func TestDecodePayload(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"pause_minutes": 30, "budget_days": 12.5, "description": "x", "hk_project": null}`))
	w := httptest.NewRecorder()

	payload, ok := decodePayload(w, req)
	require.True(t, ok)
	assert.Equal(t, vault.Payload{
		"pause_minutes": int64(30),
		"budget_days":   12.5,
		"description":   "x",
		"hk_project":    nil,
	}, payload)

	for _, body := range []string{"", "[1,2]", "null", "{"} {
		w := httptest.NewRecorder()
		_, ok := decodePayload(w, httptest.NewRequest("POST", "/", strings.NewReader(body)))
		assert.False(t, ok, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}
