package endpoints

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/mitarbeiterportal/portal/pkg/portal"
	"github.com/mitarbeiterportal/portal/pkg/vault"
)

// MockAccountService implements server.AccountService for testing using testify/mock
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Register(ctx context.Context, r portal.Registration) (*portal.User, error) {
	args := m.Called(ctx, r)
	return userArg(args.Get(0)), args.Error(1)
}

func (m *MockAccountService) Authenticate(ctx context.Context, email, password string) (*portal.User, error) {
	args := m.Called(ctx, email, password)
	return userArg(args.Get(0)), args.Error(1)
}

func (m *MockAccountService) Profile(ctx context.Context, key uuid.UUID, at *time.Time) (*portal.User, error) {
	args := m.Called(ctx, key, at)
	return userArg(args.Get(0)), args.Error(1)
}

func (m *MockAccountService) UpdateProfile(ctx context.Context, key uuid.UUID, patch vault.Payload) (*portal.User, error) {
	args := m.Called(ctx, key, patch)
	return userArg(args.Get(0)), args.Error(1)
}

func (m *MockAccountService) ChangePassword(ctx context.Context, key uuid.UUID, c portal.PasswordChange) error {
	return m.Called(ctx, key, c).Error(0)
}

func (m *MockAccountService) List(ctx context.Context) ([]portal.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]portal.User)
	return users, args.Error(1)
}

func (m *MockAccountService) Delete(ctx context.Context, key uuid.UUID) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockAccountService) IsAdmin(ctx context.Context, key uuid.UUID) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func userArg(v interface{}) *portal.User {
	u, _ := v.(*portal.User)
	return u
}

// MockProjectService implements server.ProjectService for testing using testify/mock
type MockProjectService struct {
	mock.Mock
}

func (m *MockProjectService) List(ctx context.Context) ([]portal.Project, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]portal.Project)
	return list, args.Error(1)
}

func (m *MockProjectService) Get(ctx context.Context, key uuid.UUID, at *time.Time) (*portal.Project, error) {
	args := m.Called(ctx, key, at)
	p, _ := args.Get(0).(*portal.Project)
	return p, args.Error(1)
}

func (m *MockProjectService) Create(ctx context.Context, input vault.Payload, source string) (*portal.Project, error) {
	args := m.Called(ctx, input, source)
	p, _ := args.Get(0).(*portal.Project)
	return p, args.Error(1)
}

func (m *MockProjectService) Update(ctx context.Context, key uuid.UUID, input vault.Payload, source string) (*portal.Project, error) {
	args := m.Called(ctx, key, input, source)
	p, _ := args.Get(0).(*portal.Project)
	return p, args.Error(1)
}

func (m *MockProjectService) Delete(ctx context.Context, key uuid.UUID) error {
	return m.Called(ctx, key).Error(0)
}

// MockCustomerService implements server.CustomerService for testing using testify/mock
type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) List(ctx context.Context) ([]portal.Customer, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]portal.Customer)
	return list, args.Error(1)
}

func (m *MockCustomerService) Get(ctx context.Context, key uuid.UUID, at *time.Time) (*portal.Customer, error) {
	args := m.Called(ctx, key, at)
	c, _ := args.Get(0).(*portal.Customer)
	return c, args.Error(1)
}

func (m *MockCustomerService) Create(ctx context.Context, input vault.Payload, source string) (*portal.Customer, error) {
	args := m.Called(ctx, input, source)
	c, _ := args.Get(0).(*portal.Customer)
	return c, args.Error(1)
}

func (m *MockCustomerService) Update(ctx context.Context, key uuid.UUID, input vault.Payload, source string) (*portal.Customer, error) {
	args := m.Called(ctx, key, input, source)
	c, _ := args.Get(0).(*portal.Customer)
	return c, args.Error(1)
}

func (m *MockCustomerService) Delete(ctx context.Context, key uuid.UUID) error {
	return m.Called(ctx, key).Error(0)
}

// MockTimeEntryService implements server.TimeEntryService for testing using testify/mock
type MockTimeEntryService struct {
	mock.Mock
}

func (m *MockTimeEntryService) List(ctx context.Context, user uuid.UUID, month *portal.Month) ([]portal.TimeEntry, error) {
	args := m.Called(ctx, user, month)
	list, _ := args.Get(0).([]portal.TimeEntry)
	return list, args.Error(1)
}

func (m *MockTimeEntryService) Get(ctx context.Context, user, id uuid.UUID) (*portal.TimeEntry, error) {
	args := m.Called(ctx, user, id)
	e, _ := args.Get(0).(*portal.TimeEntry)
	return e, args.Error(1)
}

func (m *MockTimeEntryService) Create(ctx context.Context, user uuid.UUID, input vault.Payload, source string) (*portal.TimeEntry, error) {
	args := m.Called(ctx, user, input, source)
	e, _ := args.Get(0).(*portal.TimeEntry)
	return e, args.Error(1)
}

func (m *MockTimeEntryService) Update(ctx context.Context, user, id uuid.UUID, input vault.Payload, source string) (*portal.TimeEntry, error) {
	args := m.Called(ctx, user, id, input, source)
	e, _ := args.Get(0).(*portal.TimeEntry)
	return e, args.Error(1)
}

func (m *MockTimeEntryService) Delete(ctx context.Context, user, id uuid.UUID) error {
	return m.Called(ctx, user, id).Error(0)
}

func (m *MockTimeEntryService) History(ctx context.Context, user, id uuid.UUID) ([]portal.TimeEntryVersion, error) {
	args := m.Called(ctx, user, id)
	list, _ := args.Get(0).([]portal.TimeEntryVersion)
	return list, args.Error(1)
}

// MockDashboardService implements server.DashboardService for testing using testify/mock
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) Summary(ctx context.Context, user uuid.UUID) (*portal.Summary, error) {
	args := m.Called(ctx, user)
	s, _ := args.Get(0).(*portal.Summary)
	return s, args.Error(1)
}

// MockHistoryService implements server.HistoryService for testing using testify/mock
type MockHistoryService struct {
	mock.Mock
}

func (m *MockHistoryService) Entity(ctx context.Context, kind portal.Kind, key uuid.UUID, at *time.Time) (*portal.EntityHistory, error) {
	args := m.Called(ctx, kind, key, at)
	h, _ := args.Get(0).(*portal.EntityHistory)
	return h, args.Error(1)
}

// MockHealthStore implements store.HealthStore for testing using testify/mock
type MockHealthStore struct {
	mock.Mock
}

func (m *MockHealthStore) CheckConnectivity(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
