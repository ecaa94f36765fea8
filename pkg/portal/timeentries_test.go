package portal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

func book(t *testing.T, svc *Services, user, project uuid.UUID, date, start, end string, extra vault.Payload) *TimeEntry {
	t.Helper()
	input := vault.Payload{"hk_project": project.String(), "entry_date": date, "start_time": start, "end_time": end}.Merge(extra)
	e, err := svc.TimeEntries.Create(context.Background(), user, input, "test")
	require.NoError(t, err)
	return e
}

func TestTimeEntries_Create(t *testing.T) {
	svc, _ := newServices(t)
	u := register(t, svc, "jo@example.com")
	apollo := createProject(t, svc, "Apollo")

	e := book(t, svc, u.Key, apollo, "2024-03-14", "09:00", "17:30", vault.Payload{"pause_minutes": 30})
	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, ProjectRef{Key: apollo, Name: "Apollo"}, e.Project)
	assert.Equal(t, "2024-03-14", e.EntryDate)
	assert.Equal(t, int64(30), e.PauseMinutes)
	assert.Equal(t, "Büro", e.WorkLocation)
	assert.Equal(t, "", e.Description)
	assert.Equal(t, 8.0, e.Hours)
}

func TestTimeEntries_Validation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newServices(t)
	u := register(t, svc, "kim@example.com")
	apollo := createProject(t, svc, "Apollo")
	valid := vault.Payload{"hk_project": apollo.String(), "entry_date": "2024-03-14", "start_time": "09:00", "end_time": "10:00"}

	tests := []struct {
		name  string
		patch vault.Payload
		field string
	}{
		{"missing project", vault.Payload{"hk_project": nil}, "hk_project"},
		{"unknown project", vault.Payload{"hk_project": uuid.NewString()}, "hk_project"},
		{"bad date", vault.Payload{"entry_date": "14.03.2024"}, "entry_date"},
		{"bad start", vault.Payload{"start_time": "9 Uhr"}, "start_time"},
		{"end before start", vault.Payload{"end_time": "08:00"}, "end_time"},
		{"end equals start", vault.Payload{"end_time": "09:00"}, "end_time"},
		{"negative pause", vault.Payload{"pause_minutes": -5}, "pause_minutes"},
		{"pause longer than work", vault.Payload{"pause_minutes": 60}, "pause_minutes"},
		{"fractional pause", vault.Payload{"pause_minutes": 1.5}, "pause_minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.TimeEntries.Create(ctx, u.Key, valid.Merge(tt.patch), "test")
			var verr *vault.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
		})
	}

	entries, err := svc.TimeEntries.List(ctx, u.Key, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestTimeEntries_ListByMonth(t *testing.T) {
	ctx := context.Background()
	svc, _ := newServices(t)
	u := register(t, svc, "lea@example.com")
	other := register(t, svc, "max@example.com")
	apollo := createProject(t, svc, "Apollo")

	book(t, svc, u.Key, apollo, "2024-03-02", "13:00", "15:00", nil)
	book(t, svc, u.Key, apollo, "2024-02-29", "09:00", "10:00", nil)
	book(t, svc, u.Key, apollo, "2024-03-02", "08:00", "12:00", nil)
	book(t, svc, other.Key, apollo, "2024-03-05", "08:00", "12:00", nil)

	march, err := svc.TimeEntries.List(ctx, u.Key, &Month{Year: 2024, Month: time.March})
	require.NoError(t, err)
	require.Len(t, march, 2)
	assert.Equal(t, "08:00", march[0].StartTime)
	assert.Equal(t, "13:00", march[1].StartTime)

	all, err := svc.TimeEntries.List(ctx, u.Key, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-02-29", all[0].EntryDate)
	for _, e := range all {
		assert.Equal(t, ProjectRef{Key: apollo, Name: "Apollo"}, e.Project)
	}
}

func TestTimeEntries_Update(t *testing.T) {
	ctx := context.Background()
	svc, _ := newServices(t)
	u := register(t, svc, "nina@example.com")
	apollo := createProject(t, svc, "Apollo")
	gemini := createProject(t, svc, "Gemini")
	e := book(t, svc, u.Key, apollo, "2024-03-14", "09:00", "12:00", vault.Payload{"description": "draft"})

	patched, err := svc.TimeEntries.Update(ctx, u.Key, e.ID, vault.Payload{"end_time": "13:00"}, "test")
	require.NoError(t, err)
	assert.Equal(t, e.ID, patched.ID)
	assert.Equal(t, "13:00", patched.EndTime)
	assert.Equal(t, "draft", patched.Description)
	assert.Equal(t, 4.0, patched.Hours)

	moved, err := svc.TimeEntries.Update(ctx, u.Key, e.ID, vault.Payload{"hk_project": gemini.String(), "description": "final"}, "test")
	require.NoError(t, err)
	assert.Equal(t, e.ID, moved.ID)
	assert.Equal(t, "Gemini", moved.Project.Name)
	assert.Equal(t, "13:00", moved.EndTime)
	assert.Equal(t, "final", moved.Description)

	_, err = svc.TimeEntries.Update(ctx, u.Key, e.ID, vault.Payload{"start_time": "14:00"}, "test")
	assert.ErrorIs(t, err, vault.ErrValidation)

	_, err = svc.TimeEntries.Update(ctx, u.Key, uuid.New(), vault.Payload{"description": "x"}, "test")
	assert.ErrorIs(t, err, vault.ErrNotFound)

	stranger := register(t, svc, "oscar@example.com")
	_, err = svc.TimeEntries.Update(ctx, stranger.Key, e.ID, vault.Payload{"description": "mine"}, "test")
	assert.ErrorIs(t, err, vault.ErrNotFound)

	history, err := svc.TimeEntries.History(ctx, u.Key, e.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, apollo, history[0].Project)
	assert.Equal(t, "12:00", history[0].Payload["end_time"])
	assert.Equal(t, apollo, history[1].Project)
	assert.Equal(t, gemini, history[2].Project)
	assert.Nil(t, history[2].ValidTo)
	assert.NotEqual(t, history[1].Link, history[2].Link)
}

func TestTimeEntries_Delete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newServices(t)
	u := register(t, svc, "paul@example.com")
	apollo := createProject(t, svc, "Apollo")
	e := book(t, svc, u.Key, apollo, "2024-03-14", "09:00", "12:00", nil)

	require.NoError(t, svc.TimeEntries.Delete(ctx, u.Key, e.ID))
	assert.ErrorIs(t, svc.TimeEntries.Delete(ctx, u.Key, e.ID), vault.ErrNotFound)

	entries, err := svc.TimeEntries.List(ctx, u.Key, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)

	history, err := svc.TimeEntries.History(ctx, u.Key, e.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.NotNil(t, history[0].ValidTo)

	_, err = svc.TimeEntries.History(ctx, u.Key, uuid.New())
	assert.ErrorIs(t, err, vault.ErrNotFound)
}

func TestHours(t *testing.T) {
	tests := []struct {
		start, end string
		pause      any
		want       float64
	}{
		{"09:00", "17:30", int64(30), 8},
		{"09:00", "09:20", nil, 0.33},
		{"08:15", "12:00", 15, 3.5},
		{"bad", "12:00", nil, 0},
	}
	for _, tt := range tests {
		got := Hours(vault.Payload{"start_time": tt.start, "end_time": tt.end, "pause_minutes": tt.pause})
		assert.Equal(t, tt.want, got, "%s-%s", tt.start, tt.end)
	}
}
