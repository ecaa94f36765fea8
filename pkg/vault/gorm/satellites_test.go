package gorm

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

const (
	lockOpenDetails  = `SELECT t_from FROM "s_user_details" WHERE "hk_user" = $1 AND t_to IS NULL ORDER BY t_from DESC, seq DESC FOR UPDATE`
	closeOpenDetails = `UPDATE "s_user_details" SET t_to = GREATEST(t_from, $1) WHERE "hk_user" = $2 AND t_to IS NULL`
	insertDetails    = `INSERT INTO "s_user_details" ("hk_user", t_from, t_to, b_from, b_to, rec_src, "first_name", "last_name") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
)

var detailColumns = []string{"hk_user", "seq", "t_from", "t_to", "b_from", "b_to", "rec_src", "first_name", "last_name"}

func TestPutVersion_ClosesOpenRow(t *testing.T) {
	store, mock, f := newMockStore(t)
	owner := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockUserHub)).WithArgs(owner.String()).WillReturnRows(openRow())
	mock.ExpectQuery(regexp.QuoteMeta(lockOpenDetails)).
		WithArgs(owner.String()).
		WillReturnRows(sqlmock.NewRows([]string{"t_from"}).AddRow(t0.Add(-time.Hour)))
	mock.ExpectExec(regexp.QuoteMeta(closeOpenDetails)).
		WithArgs(t0, owner.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertDetails)).
		WithArgs(owner.String(), t0, nil, "2024-03-01", nil, "profile", "Alicia", nil).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := store.Satellites(f.details).PutVersion(context.Background(), owner, vault.Payload{"first_name": "Alicia"}, "profile")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutVersion_FirstVersionSkipsClose(t *testing.T) {
	store, mock, f := newMockStore(t)
	owner := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockUserHub)).WithArgs(owner.String()).WillReturnRows(openRow())
	mock.ExpectQuery(regexp.QuoteMeta(lockOpenDetails)).
		WithArgs(owner.String()).
		WillReturnRows(sqlmock.NewRows([]string{"t_from"}))
	mock.ExpectExec(regexp.QuoteMeta(insertDetails)).
		WithArgs(owner.String(), t0, nil, "2024-03-01", nil, "register", "Alice", "Smith").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.Satellites(f.details).PutVersion(context.Background(), owner,
		vault.Payload{"first_name": "Alice", "last_name": "Smith"}, "register")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutVersion_NeverGoesBackInTime(t *testing.T) {
	store, mock, f := newMockStore(t)
	owner := uuid.New()
	ahead := t0.Add(time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockUserHub)).WithArgs(owner.String()).WillReturnRows(openRow())
	mock.ExpectQuery(regexp.QuoteMeta(lockOpenDetails)).
		WithArgs(owner.String()).
		WillReturnRows(sqlmock.NewRows([]string{"t_from"}).AddRow(ahead))
	mock.ExpectExec(regexp.QuoteMeta(closeOpenDetails)).
		WithArgs(ahead, owner.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertDetails)).
		WithArgs(owner.String(), ahead, nil, "2024-03-01", nil, "profile", "Alicia", nil).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := store.Satellites(f.details).PutVersion(context.Background(), owner, vault.Payload{"first_name": "Alicia"}, "profile")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutVersion_Errors(t *testing.T) {
	owner := uuid.New()

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		payload vault.Payload
		wantErr error
	}{
		{
			name:    "unknown attribute",
			setup:   func(mock sqlmock.Sqlmock) {},
			payload: vault.Payload{"nickname": "Al"},
			wantErr: vault.ErrValidation,
		},
		{
			name: "missing hub",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(lockUserHub)).
					WithArgs(owner.String()).
					WillReturnRows(sqlmock.NewRows([]string{"t_to"}))
				mock.ExpectRollback()
			},
			payload: vault.Payload{"first_name": "Alice"},
			wantErr: vault.ErrHubNotFound,
		},
		{
			name: "closed hub",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(lockUserHub)).
					WithArgs(owner.String()).
					WillReturnRows(closedRow(t0))
				mock.ExpectRollback()
			},
			payload: vault.Payload{"first_name": "Alice"},
			wantErr: vault.ErrEntityInactive,
		},
		{
			name: "backstop index",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(lockUserHub)).WithArgs(owner.String()).WillReturnRows(openRow())
				mock.ExpectQuery(regexp.QuoteMeta(lockOpenDetails)).
					WithArgs(owner.String()).
					WillReturnRows(sqlmock.NewRows([]string{"t_from"}))
				mock.ExpectExec(`INSERT INTO "s_user_details"`).
					WillReturnError(&pq.Error{Code: "23505", Constraint: "s_user_details_open_key"})
				mock.ExpectRollback()
			},
			payload: vault.Payload{"first_name": "Alice"},
			wantErr: vault.ErrConcurrentModification,
		},
		{
			name: "lock timeout",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(lockUserHub)).
					WithArgs(owner.String()).
					WillReturnError(&pq.Error{Code: "55P03", Message: "could not obtain lock"})
				mock.ExpectRollback()
			},
			payload: vault.Payload{"first_name": "Alice"},
			wantErr: vault.ErrConcurrentModification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock, f := newMockStore(t)
			tt.setup(mock)

			err := store.Satellites(f.details).PutVersion(context.Background(), owner, tt.payload, "profile")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetCurrent(t *testing.T) {
	store, mock, f := newMockStore(t)
	owner := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "s_user_details" WHERE "hk_user" = $1 AND t_to IS NULL ORDER BY t_from DESC, seq DESC LIMIT 1`)).
		WithArgs(owner.String()).
		WillReturnRows(sqlmock.NewRows(detailColumns).
			AddRow(owner.String(), int64(7), t0, nil, day, nil, "profile", "Alicia", nil))

	v, err := store.Satellites(f.details).GetCurrent(context.Background(), owner)
	require.NoError(t, err)
	assert.True(t, v.Current())
	assert.Equal(t, int64(7), v.Seq)
	assert.Equal(t, vault.Payload{"first_name": "Alicia", "last_name": nil}, v.Payload)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurrent_NotFound(t *testing.T) {
	store, mock, f := newMockStore(t)
	owner := uuid.New()

	mock.ExpectQuery(`FROM "s_user_details"`).
		WithArgs(owner.String()).
		WillReturnRows(sqlmock.NewRows(detailColumns))

	_, err := store.Satellites(f.details).GetCurrent(context.Background(), owner)
	assert.ErrorIs(t, err, vault.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAsOf(t *testing.T) {
	store, mock, f := newMockStore(t)
	owner := uuid.New()
	at := t0.Add(30 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "s_user_details" WHERE "hk_user" = $1 AND t_from <= $2 AND (t_to IS NULL OR t_to > $3) ORDER BY t_from DESC, seq DESC LIMIT 1`)).
		WithArgs(owner.String(), at, at).
		WillReturnRows(sqlmock.NewRows(detailColumns).
			AddRow(owner.String(), int64(1), t0, t0.Add(time.Hour), day, nil, "register", "Alice", "Smith"))

	v, err := store.Satellites(f.details).GetAsOf(context.Background(), owner, at)
	require.NoError(t, err)
	assert.Equal(t, "Alice", v.Payload.String("first_name"))
	assert.True(t, v.Contains(at))
	assert.False(t, v.Current())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCloseAll(t *testing.T) {
	store, mock, f := newMockStore(t)
	owner := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockOpenDetails)).
		WithArgs(owner.String()).
		WillReturnRows(sqlmock.NewRows([]string{"t_from"}).AddRow(t0.Add(-time.Hour)))
	mock.ExpectExec(regexp.QuoteMeta(closeOpenDetails)).
		WithArgs(t0, owner.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := store.Satellites(f.details).CloseAll(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory(t *testing.T) {
	store, mock, f := newMockStore(t)
	owner := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "s_user_details" WHERE "hk_user" = $1 ORDER BY t_from, seq`)).
		WithArgs(owner.String()).
		WillReturnRows(sqlmock.NewRows(detailColumns).
			AddRow(owner.String(), int64(1), t0, t0.Add(time.Hour), day, nil, "register", "Alice", nil).
			AddRow(owner.String(), int64(2), t0.Add(time.Hour), nil, day, nil, "profile", "Alicia", nil))

	versions, err := store.Satellites(f.details).History(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "Alice", versions[0].Payload.String("first_name"))
	assert.Equal(t, "Alicia", versions[1].Payload.String("first_name"))
	assert.Equal(t, *versions[0].ValidTo, versions[1].ValidFrom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanBusinessRange(t *testing.T) {
	store, mock, f := newMockStore(t)
	a, b := uuid.New(), uuid.New()
	columns := []string{"hk_user_project_timeentry", "seq", "t_from", "t_to", "b_from", "b_to", "rec_src", "entry_date", "description"}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT DISTINCT ON ("hk_user_project_timeentry") `)+
		`.*`+regexp.QuoteMeta(`WHERE t_to IS NULL AND b_from >= $1 AND b_from < $2 ORDER BY "hk_user_project_timeentry", t_from DESC, seq DESC`)).
		WithArgs("2024-03-01", "2024-03-08").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(a.String(), int64(4), t0, nil, day.AddDate(0, 0, 2), nil, "api", "2024-03-03", "late").
			AddRow(b.String(), int64(3), t0, nil, day, nil, "api", "2024-03-01", "early"))

	versions, err := store.Satellites(f.entryDetails).ScanBusinessRange(context.Background(), vault.BusinessRange{
		From: day,
		To:   day.AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "early", versions[0].Payload.String("description"))
	assert.Equal(t, "2024-03-03", versions[1].Payload["entry_date"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanBusinessRange_EmptyOwners(t *testing.T) {
	store, mock, f := newMockStore(t)

	versions, err := store.Satellites(f.entryDetails).ScanBusinessRange(context.Background(), vault.BusinessRange{
		Owners: []uuid.UUID{},
	})
	require.NoError(t, err)
	assert.Empty(t, versions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransaction_JoinsOuterTransaction(t *testing.T) {
	store, mock, f := newMockStore(t)
	owner := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(lockUserHub)).WithArgs(owner.String()).WillReturnRows(openRow())
	mock.ExpectQuery(regexp.QuoteMeta(lockOpenDetails)).
		WithArgs(owner.String()).
		WillReturnRows(sqlmock.NewRows([]string{"t_from"}))
	mock.ExpectExec(`INSERT INTO "s_user_details"`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta(lockUserHub)).WithArgs(owner.String()).WillReturnRows(openRow())
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "h_user" SET t_to = GREATEST(t_from, $1)`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Transaction(context.Background(), func(tx vault.Store) error {
		if err := tx.Satellites(f.details).PutVersion(context.Background(), owner, vault.Payload{"first_name": "Alice"}, "test"); err != nil {
			return err
		}
		return tx.Hubs(f.users).CloseHub(context.Background(), owner)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
