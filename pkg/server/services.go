package server

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mitarbeiterportal/portal/pkg/portal"
	"github.com/mitarbeiterportal/portal/pkg/server/store"
	"github.com/mitarbeiterportal/portal/pkg/vault"
)

// AccountService is implemented by *portal.Accounts.
type AccountService interface {
	Register(ctx context.Context, r portal.Registration) (*portal.User, error)
	Authenticate(ctx context.Context, email, password string) (*portal.User, error)
	Profile(ctx context.Context, key uuid.UUID, at *time.Time) (*portal.User, error)
	UpdateProfile(ctx context.Context, key uuid.UUID, patch vault.Payload) (*portal.User, error)
	ChangePassword(ctx context.Context, key uuid.UUID, c portal.PasswordChange) error
	List(ctx context.Context) ([]portal.User, error)
	Delete(ctx context.Context, key uuid.UUID) error
	IsAdmin(ctx context.Context, key uuid.UUID) (bool, error)
}

// ProjectService is implemented by *portal.Projects.
type ProjectService interface {
	List(ctx context.Context) ([]portal.Project, error)
	Get(ctx context.Context, key uuid.UUID, at *time.Time) (*portal.Project, error)
	Create(ctx context.Context, input vault.Payload, source string) (*portal.Project, error)
	Update(ctx context.Context, key uuid.UUID, input vault.Payload, source string) (*portal.Project, error)
	Delete(ctx context.Context, key uuid.UUID) error
}

// CustomerService is implemented by *portal.Customers.
type CustomerService interface {
	List(ctx context.Context) ([]portal.Customer, error)
	Get(ctx context.Context, key uuid.UUID, at *time.Time) (*portal.Customer, error)
	Create(ctx context.Context, input vault.Payload, source string) (*portal.Customer, error)
	Update(ctx context.Context, key uuid.UUID, input vault.Payload, source string) (*portal.Customer, error)
	Delete(ctx context.Context, key uuid.UUID) error
}

// TimeEntryService is implemented by *portal.TimeEntries.
type TimeEntryService interface {
	List(ctx context.Context, user uuid.UUID, month *portal.Month) ([]portal.TimeEntry, error)
	Get(ctx context.Context, user, id uuid.UUID) (*portal.TimeEntry, error)
	Create(ctx context.Context, user uuid.UUID, input vault.Payload, source string) (*portal.TimeEntry, error)
	Update(ctx context.Context, user, id uuid.UUID, input vault.Payload, source string) (*portal.TimeEntry, error)
	Delete(ctx context.Context, user, id uuid.UUID) error
	History(ctx context.Context, user, id uuid.UUID) ([]portal.TimeEntryVersion, error)
}

type DashboardService interface {
	Summary(ctx context.Context, user uuid.UUID) (*portal.Summary, error)
}

type HistoryService interface {
	Entity(ctx context.Context, kind portal.Kind, key uuid.UUID, at *time.Time) (*portal.EntityHistory, error)
}

var (
	_ AccountService   = (*portal.Accounts)(nil)
	_ ProjectService   = (*portal.Projects)(nil)
	_ CustomerService  = (*portal.Customers)(nil)
	_ TimeEntryService = (*portal.TimeEntries)(nil)
	_ DashboardService = (*portal.Dashboard)(nil)
	_ HistoryService   = (*portal.History)(nil)
)

// FromPortal adapts portal services and a health store.
func FromPortal(p *portal.Services, health store.HealthStore) Services {
	return Services{
		Accounts:    p.Accounts,
		Projects:    p.Projects,
		Customers:   p.Customers,
		TimeEntries: p.TimeEntries,
		Dashboard:   p.Dashboard,
		History:     p.History,
		Health:      health,
	}
}
