package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitarbeiterportal/portal/pkg/audit"
	"github.com/mitarbeiterportal/portal/pkg/config"
	"github.com/mitarbeiterportal/portal/pkg/portal"
	"github.com/mitarbeiterportal/portal/pkg/vault"
)

func init() {
	audit.SetEnabled(false)
}

func TestParseSteps(t *testing.T) {
	steps, err := parseSteps(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, steps)

	steps, err = parseSteps([]string{"3"})
	require.NoError(t, err)
	assert.Equal(t, 3, steps)

	for _, bad := range []string{"0", "-1", "two"} {
		_, err := parseSteps([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestWithMigrationsTable(t *testing.T) {
	assert.Equal(t, "", withMigrationsTable(""))
	assert.Equal(t,
		"postgres://u:p@db:5432/portal?x-migrations-table=portal_schema_migrations",
		withMigrationsTable("postgres://u:p@db:5432/portal"))
	assert.Equal(t,
		"postgres://u:p@db:5432/portal?sslmode=disable&x-migrations-table=portal_schema_migrations",
		withMigrationsTable("postgres://u:p@db:5432/portal?sslmode=disable"))
}

func TestListMigrationFiles(t *testing.T) {
	t.Setenv("PORTAL_MIGRATIONS_PATH", filepath.Join("..", "..", "db", "migrations"))

	files, err := listMigrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, f := range files {
		assert.True(t, strings.HasSuffix(f, ".up.sql"), f)
	}
	assert.Equal(t, "000001_create_hubs.up.sql", files[0])
}

func TestNewMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := newMigrate()
	assert.EqualError(t, err, "DATABASE_URL environment variable is required")
}

func TestParseAsOf(t *testing.T) {
	at, err := parseAsOf("")
	require.NoError(t, err)
	assert.Nil(t, at)

	at, err = parseAsOf("2024-03-01T12:00:00Z")
	require.NoError(t, err)
	assert.True(t, at.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))

	_, err = parseAsOf("2024-03-01")
	assert.Error(t, err)
}

func TestSettingsFrom(t *testing.T) {
	cfg := config.Default()
	cfg.WriteRetries = 3
	cfg.MinPasswordLength = 12
	cfg.DefaultWorkLocation = "Homeoffice"

	assert.Equal(t, portal.Settings{
		WriteRetries:        3,
		MinPasswordLength:   12,
		DefaultWorkLocation: "Homeoffice",
	}, settingsFrom(cfg))
}

func TestShowConfiguration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte("write_retries: 2\n"), 0o600))
	t.Setenv("PORTAL_CONFIG_PATH", dir)

	var text bytes.Buffer
	require.NoError(t, showConfiguration(&text, "text"))
	assert.Contains(t, text.String(), filepath.Join(dir, config.ConfigFileName))
	assert.Contains(t, text.String(), "write_retries")

	var out bytes.Buffer
	require.NoError(t, showConfiguration(&out, "json"))
	var decoded struct {
		ConfigFile string `json:"config_file"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, filepath.Join(dir, config.ConfigFileName), decoded.ConfigFile)

	assert.Error(t, showConfiguration(&out, "xml"))
}

func TestWaitForServer(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, waitForServer(srv.URL, 5, time.Millisecond))
	assert.Equal(t, 3, calls)
}

func TestWaitForServer_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := waitForServer(srv.URL, 2, time.Millisecond)
	assert.EqualError(t, err, "portal is not ready after 2 attempts")
}

type fakeAccounts struct {
	admins map[string]bool
}

func (f *fakeAccounts) SetAdmin(_ context.Context, email string, admin bool) (*portal.User, error) {
	email = portal.NormalizeEmail(email)
	if _, ok := f.admins[email]; !ok {
		return nil, vault.ErrHubNotFound
	}
	f.admins[email] = admin
	return &portal.User{Key: uuid.NewSHA1(uuid.NameSpaceOID, []byte(email)), Email: email, IsAdmin: admin}, nil
}

func TestSetAdmin(t *testing.T) {
	accounts := &fakeAccounts{admins: map[string]bool{"alice@x.com": false, "bob@x.com": true}}

	var out bytes.Buffer
	require.NoError(t, setAdmin(context.Background(), &out, accounts, []string{"Alice@X.com"}, true))
	assert.True(t, accounts.admins["alice@x.com"])
	assert.Contains(t, out.String(), "Promoted alice@x.com")

	out.Reset()
	require.NoError(t, setAdmin(context.Background(), &out, accounts, []string{"bob@x.com"}, false))
	assert.False(t, accounts.admins["bob@x.com"])
	assert.Contains(t, out.String(), "Demoted bob@x.com")

	err := setAdmin(context.Background(), &out, accounts, []string{"nobody@x.com"}, true)
	assert.ErrorIs(t, err, vault.ErrHubNotFound)
}

type fakeHistory struct {
	kind portal.Kind
	key  string
	at   *time.Time
}

func (f *fakeHistory) ByBusinessKey(_ context.Context, kind portal.Kind, businessKey string, at *time.Time) (*portal.EntityHistory, error) {
	f.kind, f.key, f.at = kind, businessKey, at
	if businessKey == "missing" {
		return nil, vault.ErrHubNotFound
	}
	return &portal.EntityHistory{
		Kind:     kind,
		Hub:      vault.Hub{BusinessKey: businessKey, Source: "api:alice@x.com"},
		AsOf:     at,
		Payloads: map[string]vault.Payload{"s_project_details": {"description": "Moon"}},
		Versions: map[string][]vault.Version{},
	}, nil
}

func TestShowHistory(t *testing.T) {
	history := &fakeHistory{}

	var out bytes.Buffer
	require.NoError(t, showHistory(context.Background(), &out, history, "Project", "Apollo", "2024-03-01T12:00:00Z"))
	assert.Equal(t, portal.KindProject, history.kind)
	assert.Equal(t, "Apollo", history.key)
	require.NotNil(t, history.at)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "project", decoded["kind"])
	assert.Equal(t, "2024-03-01T12:00:00Z", decoded["as_of"])
}

func TestShowHistory_Errors(t *testing.T) {
	history := &fakeHistory{}
	var out bytes.Buffer

	err := showHistory(context.Background(), &out, history, "timesheet", "x", "")
	assert.ErrorContains(t, err, `unknown kind "timesheet"`)

	err = showHistory(context.Background(), &out, history, "user", "alice@x.com", "yesterday")
	assert.ErrorContains(t, err, "invalid --as-of")

	err = showHistory(context.Background(), &out, history, "customer", "missing", "")
	assert.True(t, errors.Is(err, vault.ErrHubNotFound))
	assert.Empty(t, out.String())
}
