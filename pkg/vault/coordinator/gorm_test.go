package coordinator

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mitarbeiterportal/portal/pkg/vault"
	vaultgorm "github.com/mitarbeiterportal/portal/pkg/vault/gorm"
)

var entryColumns = []string{"hk_user_project_timeentry", "hk_user", "hk_project", "timeentry_id", "seq", "t_from", "t_to", "b_from", "b_to", "rec_src"}

func newSQLCoordinator(t *testing.T, now time.Time) (*Coordinator, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(
		postgres.New(postgres.Config{Conn: db, PreferSimpleProtocol: true}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)

	store, err := vaultgorm.NewStore(gormDB, schema, vaultgorm.WithClock(vault.NewSteppingClock(now, time.Second)))
	require.NoError(t, err)
	return New(store, schema), mock
}

// A time entry moved by another writer while DeleteLink waited on the user
// lock is read again under that lock, so the moved link is the one closed.
func TestDeleteLink_ReadsLinkUnderAnchorLock(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	c, mock := newSQLCoordinator(t, now)
	user, project, entry, moved := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT t_to FROM "h_user" WHERE "hk_user" = $1 FOR UPDATE`)).
		WithArgs(user.String()).
		WillReturnRows(sqlmock.NewRows([]string{"t_to"}).AddRow(nil))
	mock.ExpectQuery(regexp.QuoteMeta(`AND t_to IS NULL ORDER BY t_from DESC, seq DESC LIMIT 1 FOR UPDATE`)).
		WithArgs(user.String(), entry.String()).
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow(moved.String(), user.String(), project.String(), entry.String(), int64(2), now.Add(-time.Minute), nil, now, nil, "api"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT t_to FROM "l_user_project_timeentry" WHERE "hk_user_project_timeentry" = $1 FOR UPDATE`)).
		WithArgs(moved.String()).
		WillReturnRows(sqlmock.NewRows([]string{"t_to"}).AddRow(nil))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "s_timeentry_details" SET t_to = GREATEST(t_from, $1)`)).
		WithArgs(now, moved.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "l_user_project_timeentry" SET t_to = GREATEST(t_from, $1)`)).
		WithArgs(now, moved.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, c.DeleteLink(context.Background(), entries, user, entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}
