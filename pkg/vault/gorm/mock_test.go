package gorm

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

var (
	t0  = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	schema       *vault.Schema
	users        *vault.HubTable
	projects     *vault.HubTable
	details      *vault.SatelliteTable
	current      *vault.LinkTable
	entries      *vault.LinkTable
	entryDetails *vault.SatelliteTable
}

func newFixture() *fixture {
	f := &fixture{}
	f.users = &vault.HubTable{Name: "h_user", Key: "hk_user", BusinessKey: "user_id"}
	f.projects = &vault.HubTable{Name: "h_project", Key: "hk_project", BusinessKey: "project_name"}
	f.details = &vault.SatelliteTable{
		Name:  "s_user_details",
		Owner: f.users,
		Attributes: []vault.Attribute{
			{Name: "first_name", Type: vault.Text},
			{Name: "last_name", Type: vault.Text},
		},
	}
	f.current = &vault.LinkTable{
		Name:   "l_user_current_project",
		Key:    "hk_user_current_project",
		Anchor: vault.Member{Column: "hk_user", Hub: f.users},
		Others: []vault.Member{{Column: "hk_project", Hub: f.projects}},
	}
	f.entries = &vault.LinkTable{
		Name:      "l_user_project_timeentry",
		Key:       "hk_user_project_timeentry",
		Anchor:    vault.Member{Column: "hk_user", Hub: f.users},
		Others:    []vault.Member{{Column: "hk_project", Hub: f.projects}},
		NaturalID: "timeentry_id",
	}
	f.entryDetails = &vault.SatelliteTable{
		Name:         "s_timeentry_details",
		Owner:        f.entries,
		BusinessFrom: "entry_date",
		Attributes: []vault.Attribute{
			{Name: "entry_date", Type: vault.Date, Required: true},
			{Name: "description", Type: vault.Text},
		},
	}
	f.schema = &vault.Schema{
		Hubs:       []*vault.HubTable{f.users, f.projects},
		Links:      []*vault.LinkTable{f.current, f.entries},
		Satellites: []*vault.SatelliteTable{f.details, f.entryDetails},
	}
	return f
}

// newMockStore wraps sqlmock with GORM and returns a Store whose clock starts
// at t0 and advances one second per reading.
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock, *fixture) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(
		postgres.New(postgres.Config{
			Conn:                 db,
			PreferSimpleProtocol: true,
		}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		},
	)
	require.NoError(t, err)

	f := newFixture()
	store, err := NewStore(gormDB, f.schema, WithClock(vault.NewSteppingClock(t0, time.Second)))
	require.NoError(t, err)
	return store, mock, f
}

func openRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"t_to"}).AddRow(nil)
}

func closedRow(at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"t_to"}).AddRow(at)
}
