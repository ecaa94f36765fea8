package endpoints

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mitarbeiterportal/portal/pkg/audit"
	"github.com/mitarbeiterportal/portal/pkg/authn"
	"github.com/mitarbeiterportal/portal/pkg/config"
	"github.com/mitarbeiterportal/portal/pkg/server"
)

func init() {
	audit.SetEnabled(false)
}

const testEmail = "alice@example.com"

type testEnv struct {
	server      *server.Server
	accounts    *MockAccountService
	projects    *MockProjectService
	customers   *MockCustomerService
	timeEntries *MockTimeEntryService
	dashboard   *MockDashboardService
	history     *MockHistoryService
	health      *MockHealthStore
	user        uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		accounts:    &MockAccountService{},
		projects:    &MockProjectService{},
		customers:   &MockCustomerService{},
		timeEntries: &MockTimeEntryService{},
		dashboard:   &MockDashboardService{},
		history:     &MockHistoryService{},
		health:      &MockHealthStore{},
		user:        uuid.New(),
	}
	tokens := authn.NewTokens([]byte("test-secret"), "portal", time.Hour)
	e.server = server.NewServer(server.Services{
		Accounts:    e.accounts,
		Projects:    e.projects,
		Customers:   e.customers,
		TimeEntries: e.timeEntries,
		Dashboard:   e.dashboard,
		History:     e.history,
		Health:      e.health,
	}, tokens, config.Default(), "127.0.0.1", "0")
	RegisterAll(e.server)

	t.Cleanup(func() {
		e.accounts.AssertExpectations(t)
		e.projects.AssertExpectations(t)
		e.customers.AssertExpectations(t)
		e.timeEntries.AssertExpectations(t)
		e.dashboard.AssertExpectations(t)
		e.history.AssertExpectations(t)
		e.health.AssertExpectations(t)
	})
	return e
}

func (e *testEnv) token(t *testing.T, admin bool) string {
	t.Helper()
	token, err := e.server.Tokens.Issue(e.user, testEmail, admin)
	require.NoError(t, err)
	return token
}

// admin makes the test user a current administrator.
func (e *testEnv) admin() {
	e.accounts.On("IsAdmin", mock.Anything, e.user).Return(true, nil)
}

// do sends a request through the router. An empty token sends no
// Authorization header.
func (e *testEnv) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.Router.ServeHTTP(w, req)
	return w
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Fields  []struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"fields"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}
