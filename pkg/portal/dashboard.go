package portal

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

type ProjectHours struct {
	Project string  `json:"project_name"`
	Hours   float64 `json:"hours"`
}

type DayHours struct {
	Date  string  `json:"date"`
	Hours float64 `json:"hours"`
}

type LocationHours struct {
	Location string  `json:"work_location"`
	Hours    float64 `json:"hours"`
}

type MonthSummary struct {
	WorkingDays int     `json:"working_days"`
	TotalHours  float64 `json:"total_hours"`
}

// Summary is the dashboard of one user.
type Summary struct {
	ProjectHours  []ProjectHours  `json:"projectHours"`
	TopProjects   []ProjectHours  `json:"topProjects"`
	WeekHours     []DayHours      `json:"weekHours"`
	LocationHours []LocationHours `json:"locationHours"`
	Month         MonthSummary    `json:"monthSummary"`
}

// Dashboard aggregates booked hours.
type Dashboard struct {
	base
}

// Summary computes the user's dashboard relative to today.
func (d *Dashboard) Summary(ctx context.Context, user uuid.UUID) (*Summary, error) {
	today := d.today()
	entries := &TimeEntries{base: d.base}

	all, err := entries.scan(ctx, user, vault.BusinessRange{})
	if err != nil {
		return nil, err
	}
	week, err := entries.scan(ctx, user, vault.BusinessRange{From: today.AddDate(0, 0, -6)})
	if err != nil {
		return nil, err
	}
	recent, err := entries.scan(ctx, user, vault.BusinessRange{From: today.AddDate(0, 0, -29), To: today.AddDate(0, 0, 1)})
	if err != nil {
		return nil, err
	}
	month := Month{Year: today.Year(), Month: today.Month()}
	from, to := month.Bounds()
	inMonth, err := entries.scan(ctx, user, vault.BusinessRange{From: from, To: to})
	if err != nil {
		return nil, err
	}

	s := &Summary{
		ProjectHours:  []ProjectHours{},
		WeekHours:     []DayHours{},
		LocationHours: []LocationHours{},
	}

	for _, g := range sumBy(all, func(e TimeEntry) string { return e.Project.Name }) {
		s.ProjectHours = append(s.ProjectHours, ProjectHours{Project: g.key, Hours: g.hours})
	}
	sortByHours(s.ProjectHours, func(p ProjectHours) (float64, string) { return p.Hours, p.Project })
	s.TopProjects = s.ProjectHours[:min(3, len(s.ProjectHours))]

	for _, g := range sumBy(week, func(e TimeEntry) string { return e.EntryDate }) {
		s.WeekHours = append(s.WeekHours, DayHours{Date: g.key, Hours: g.hours})
	}
	sort.Slice(s.WeekHours, func(i, j int) bool { return s.WeekHours[i].Date < s.WeekHours[j].Date })

	for _, g := range sumBy(recent, func(e TimeEntry) string { return e.WorkLocation }) {
		s.LocationHours = append(s.LocationHours, LocationHours{Location: g.key, Hours: g.hours})
	}
	sortByHours(s.LocationHours, func(l LocationHours) (float64, string) { return l.Hours, l.Location })

	days := map[string]bool{}
	var total float64
	for _, e := range inMonth {
		days[e.EntryDate] = true
		total += e.Hours
	}
	s.Month = MonthSummary{WorkingDays: len(days), TotalHours: round2(total)}
	return s, nil
}

type group struct {
	key   string
	hours float64
}

func sumBy(entries []TimeEntry, key func(TimeEntry) string) []group {
	idx := map[string]int{}
	var groups []group
	for _, e := range entries {
		k := key(e)
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, group{key: k})
		}
		groups[i].hours += e.Hours
	}
	for i := range groups {
		groups[i].hours = round2(groups[i].hours)
	}
	return groups
}

// sortByHours orders descending by hours, then by name.
func sortByHours[T any](s []T, by func(T) (float64, string)) {
	sort.SliceStable(s, func(i, j int) bool {
		hi, ni := by(s[i])
		hj, nj := by(s[j])
		if hi != hj {
			return hi > hj
		}
		return ni < nj
	})
}
