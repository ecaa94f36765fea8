package portal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mitarbeiterportal/portal/pkg/vault"
	"github.com/mitarbeiterportal/portal/pkg/vault/vaulttest"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// today is the date dashboards and month filters are computed against.
var today = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newServices(t *testing.T) (*Services, *vaulttest.Store) {
	t.Helper()
	require.NoError(t, Schema.Validate())
	store := vaulttest.NewStore(Schema, vault.NewSteppingClock(t0, time.Second))
	svc := NewServices(store, DefaultSettings, WithClock(vault.ClockFunc(func() time.Time { return today })))
	return svc, store
}

func register(t *testing.T, svc *Services, email string) *User {
	t.Helper()
	u, err := svc.Accounts.Register(context.Background(), Registration{
		Email: email, Password: "secret123", FirstName: "Test", LastName: "User",
	})
	require.NoError(t, err)
	return u
}

func createProject(t *testing.T, svc *Services, name string) uuid.UUID {
	t.Helper()
	p, err := svc.Projects.Create(context.Background(), vault.Payload{"project_name": name}, "test")
	require.NoError(t, err)
	return p.Key
}
