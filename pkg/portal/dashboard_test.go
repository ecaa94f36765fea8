package portal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

func TestDashboard_Summary(t *testing.T) {
	ctx := context.Background()
	svc, _ := newServices(t)
	u := register(t, svc, "quinn@example.com")
	apollo := createProject(t, svc, "Apollo")
	gemini := createProject(t, svc, "Gemini")

	book(t, svc, u.Key, apollo, "2024-03-14", "09:00", "17:30", vault.Payload{"pause_minutes": 30})
	book(t, svc, u.Key, gemini, "2024-03-15", "08:00", "12:00", vault.Payload{"work_location": "Homeoffice"})
	book(t, svc, u.Key, apollo, "2024-03-01", "09:00", "13:00", nil)
	book(t, svc, u.Key, gemini, "2024-02-10", "10:00", "12:00", nil)
	deleted := book(t, svc, u.Key, apollo, "2024-03-13", "09:00", "18:00", nil)
	require.NoError(t, svc.TimeEntries.Delete(ctx, u.Key, deleted.ID))

	s, err := svc.Dashboard.Summary(ctx, u.Key)
	require.NoError(t, err)

	assert.Equal(t, []ProjectHours{{"Apollo", 12}, {"Gemini", 6}}, s.ProjectHours)
	assert.Equal(t, s.ProjectHours, s.TopProjects)
	assert.Equal(t, []DayHours{{"2024-03-14", 8}, {"2024-03-15", 4}}, s.WeekHours)
	assert.Equal(t, []LocationHours{{"Büro", 12}, {"Homeoffice", 4}}, s.LocationHours)
	assert.Equal(t, MonthSummary{WorkingDays: 3, TotalHours: 16}, s.Month)
}

func TestDashboard_WeekIncludesFutureEntries(t *testing.T) {
	svc, _ := newServices(t)
	u := register(t, svc, "petra@example.com")
	apollo := createProject(t, svc, "Apollo")

	book(t, svc, u.Key, apollo, "2024-03-08", "09:00", "17:00", nil)
	book(t, svc, u.Key, apollo, "2024-03-09", "09:00", "12:00", nil)
	book(t, svc, u.Key, apollo, "2024-03-18", "09:00", "11:00", nil)

	s, err := svc.Dashboard.Summary(context.Background(), u.Key)
	require.NoError(t, err)
	assert.Equal(t, []DayHours{{"2024-03-09", 3}, {"2024-03-18", 2}}, s.WeekHours)
}

func TestDashboard_Empty(t *testing.T) {
	svc, _ := newServices(t)
	u := register(t, svc, "rosa@example.com")

	s, err := svc.Dashboard.Summary(context.Background(), u.Key)
	require.NoError(t, err)
	assert.Empty(t, s.ProjectHours)
	assert.Empty(t, s.TopProjects)
	assert.Empty(t, s.WeekHours)
	assert.Equal(t, MonthSummary{}, s.Month)
}
