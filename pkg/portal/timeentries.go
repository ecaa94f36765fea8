package portal

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mitarbeiterportal/portal/pkg/vault"
	"github.com/mitarbeiterportal/portal/pkg/vault/coordinator"
	"github.com/mitarbeiterportal/portal/pkg/vault/temporal"
)

// TimeEntry is the view of one booking.
type TimeEntry struct {
	ID           uuid.UUID  `json:"timeentry_id"`
	Project      ProjectRef `json:"project"`
	EntryDate    string     `json:"entry_date"`
	StartTime    string     `json:"start_time"`
	EndTime      string     `json:"end_time"`
	PauseMinutes int64      `json:"pause_minutes"`
	WorkLocation string     `json:"work_location"`
	Description  string     `json:"description"`
	Hours        float64    `json:"hours"`
}

// TimeEntryVersion is one historical state of a time entry.
type TimeEntryVersion struct {
	Link      uuid.UUID     `json:"hk_user_project_timeentry"`
	Project   uuid.UUID     `json:"hk_project"`
	ValidFrom time.Time     `json:"valid_from"`
	ValidTo   *time.Time    `json:"valid_to,omitempty"`
	Source    string        `json:"source"`
	Payload   vault.Payload `json:"payload"`
}

// Month selects the time entries of one calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// Bounds returns the first day of the month and of the next month.
func (m Month) Bounds() (time.Time, time.Time) {
	from := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// TimeEntries manages the bookings of users on projects.
type TimeEntries struct {
	base
}

// List returns the user's current entries, optionally limited to a month,
// ordered by date and start time.
func (s *TimeEntries) List(ctx context.Context, user uuid.UUID, month *Month) ([]TimeEntry, error) {
	r := vault.BusinessRange{}
	if month != nil {
		r.From, r.To = month.Bounds()
	}
	return s.scan(ctx, user, r)
}

func (s *TimeEntries) scan(ctx context.Context, user uuid.UUID, r vault.BusinessRange) ([]TimeEntry, error) {
	links, err := s.engine.CurrentLinks(ctx, UserProjectTimeEntry, user)
	if err != nil {
		return nil, err
	}
	byKey := make(map[uuid.UUID]vault.Link, len(links))
	r.Owners = make([]uuid.UUID, 0, len(links))
	for _, l := range links {
		byKey[l.Key] = l
		r.Owners = append(r.Owners, l.Key)
	}

	versions, err := s.engine.Range(ctx, TimeEntryDetails, r)
	if err != nil {
		return nil, err
	}

	projects := map[uuid.UUID]string{}
	entries := make([]TimeEntry, 0, len(versions))
	for _, v := range versions {
		link := byKey[v.Owner]
		pk := link.Members["hk_project"]
		name, ok := projects[pk]
		if !ok {
			view, err := s.engine.Resolve(ctx, UserProjectTimeEntry, &link, nil, projectView)
			if err != nil {
				return nil, err
			}
			name = view.String("project_name")
			projects[pk] = name
		}
		entries = append(entries, entry(link, ProjectRef{Key: pk, Name: name}, v.Payload))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].EntryDate != entries[j].EntryDate {
			return entries[i].EntryDate < entries[j].EntryDate
		}
		return entries[i].StartTime < entries[j].StartTime
	})
	return entries, nil
}

var projectView = temporal.View{Member: "hk_project", As: "project_name"}

// Get returns one of the user's entries.
func (s *TimeEntries) Get(ctx context.Context, user, id uuid.UUID) (*TimeEntry, error) {
	link, err := s.engine.Link(ctx, UserProjectTimeEntry, user, id, nil)
	if err != nil {
		return nil, err
	}
	view, err := s.engine.Resolve(ctx, UserProjectTimeEntry, link, nil,
		temporal.View{Satellite: TimeEntryDetails},
		projectView,
	)
	if err != nil {
		return nil, err
	}
	pk := link.Members["hk_project"]
	e := entry(*link, ProjectRef{Key: pk, Name: view.String("project_name")}, view)
	return &e, nil
}

func entry(link vault.Link, project ProjectRef, p vault.Payload) TimeEntry {
	pause, _ := p["pause_minutes"].(int64)
	return TimeEntry{
		ID:           link.NaturalID,
		Project:      project,
		EntryDate:    p.String("entry_date"),
		StartTime:    p.String("start_time"),
		EndTime:      p.String("end_time"),
		PauseMinutes: pause,
		WorkLocation: p.String("work_location"),
		Description:  p.String("description"),
		Hours:        Hours(p),
	}
}

// Create books a new entry from {hk_project, entry_date, start_time,
// end_time, pause_minutes, work_location, description}.
func (s *TimeEntries) Create(ctx context.Context, user uuid.UUID, input vault.Payload, source string) (*TimeEntry, error) {
	input = input.Clone()
	v, _ := take(input, "hk_project")
	project, err := parseKey("hk_project", v)
	if err != nil {
		return nil, err
	}
	if project == uuid.Nil {
		return nil, vault.NewValidationError("hk_project", "is required")
	}
	if err := s.member(ctx, ProjectHub, project, "hk_project"); err != nil {
		return nil, err
	}

	payload := vault.Payload{
		"pause_minutes": int64(0),
		"work_location": s.settings.DefaultWorkLocation,
		"description":   "",
	}.Merge(input)
	if err := checkEntry(payload); err != nil {
		return nil, err
	}

	link, err := s.coord.ReassignLink(ctx, UserProjectTimeEntry,
		map[string]uuid.UUID{"hk_user": user, "hk_project": project}, uuid.Nil, payload, source)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, user, link.NaturalID)
}

// Update patches an entry. A "hk_project" key moves it to another project.
func (s *TimeEntries) Update(ctx context.Context, user, id uuid.UUID, input vault.Payload, source string) (*TimeEntry, error) {
	input = input.Clone()
	rev := coordinator.Revision{Check: checkEntry, Source: source}
	if v, ok := take(input, "hk_project"); ok {
		project, err := parseKey("hk_project", v)
		if err != nil {
			return nil, err
		}
		if project == uuid.Nil {
			return nil, vault.NewValidationError("hk_project", "is required")
		}
		if err := s.member(ctx, ProjectHub, project, "hk_project"); err != nil {
			return nil, err
		}
		rev.Members = map[string]uuid.UUID{"hk_project": project}
	}
	rev.Patch = input

	if _, err := s.coord.ReviseLink(ctx, UserProjectTimeEntry, user, id, rev); err != nil {
		return nil, err
	}
	return s.Get(ctx, user, id)
}

// Delete closes an entry.
func (s *TimeEntries) Delete(ctx context.Context, user, id uuid.UUID) error {
	return s.coord.DeleteLink(ctx, UserProjectTimeEntry, user, id)
}

// History returns every version of an entry across project moves, oldest
// first.
func (s *TimeEntries) History(ctx context.Context, user, id uuid.UUID) ([]TimeEntryVersion, error) {
	links, err := s.engine.LinkHistory(ctx, UserProjectTimeEntry, user, id)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, vault.ErrNotFound
	}

	var out []TimeEntryVersion
	for _, l := range links {
		versions, err := s.engine.History(ctx, TimeEntryDetails, l.Key)
		if err != nil && !errors.Is(err, vault.ErrNotFound) {
			return nil, err
		}
		for _, v := range versions {
			out = append(out, TimeEntryVersion{
				Link:      l.Key,
				Project:   l.Members["hk_project"],
				ValidFrom: v.ValidFrom,
				ValidTo:   v.ValidTo,
				Source:    v.Source,
				Payload:   v.Payload,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ValidFrom.Before(out[j].ValidFrom) })
	return out, nil
}

// checkEntry validates a complete time entry payload.
func checkEntry(p vault.Payload) error {
	verr := &vault.ValidationError{}
	if _, err := vault.ParseDate(p["entry_date"]); err != nil {
		verr.Add("entry_date", "%s", err.Error())
	}
	start, err := vault.ParseClock(p["start_time"])
	if err != nil {
		verr.Add("start_time", "%s", err.Error())
	}
	end, err2 := vault.ParseClock(p["end_time"])
	if err2 != nil {
		verr.Add("end_time", "%s", err2.Error())
	}
	if err != nil || err2 != nil {
		return verr
	}
	if !end.After(start) {
		verr.Add("end_time", "must be after start_time")
		return verr
	}

	pause, err := (vault.Attribute{Name: "pause_minutes", Type: vault.Integer}).Encode(p["pause_minutes"])
	if err != nil {
		verr.Add("pause_minutes", "%s", err.Error())
		return verr
	}
	if n, _ := pause.(int64); n < 0 || float64(n) >= end.Sub(start).Minutes() {
		verr.Add("pause_minutes", "must be between 0 and the working time")
	}
	return verr.OrNil()
}

// Hours is (end - start) - pause in hours, rounded to two decimals.
func Hours(p vault.Payload) float64 {
	start, err := vault.ParseClock(p["start_time"])
	if err != nil {
		return 0
	}
	end, err := vault.ParseClock(p["end_time"])
	if err != nil {
		return 0
	}
	pause, _ := (vault.Attribute{Name: "pause_minutes", Type: vault.Integer}).Encode(p["pause_minutes"])
	n, _ := pause.(int64)
	return round2(end.Sub(start).Hours() - float64(n)/60)
}
