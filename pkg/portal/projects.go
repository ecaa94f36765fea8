package portal

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mitarbeiterportal/portal/pkg/vault"
	"github.com/mitarbeiterportal/portal/pkg/vault/coordinator"
)

// Project is the view of a project with its customer.
type Project struct {
	Key         uuid.UUID    `json:"hk_project"`
	Name        string       `json:"project_name"`
	Customer    *CustomerRef `json:"customer"`
	StartDate   *string      `json:"start_date"`
	EndDate     *string      `json:"end_date"`
	BudgetDays  *float64     `json:"budget_days"`
	Description string       `json:"description"`
}

// CustomerRef names a customer.
type CustomerRef struct {
	Key  uuid.UUID `json:"hk_customer"`
	Name string    `json:"customer_name"`
}

// Projects manages projects and their customer link.
type Projects struct {
	base
}

// List returns every active project, ordered by name.
func (p *Projects) List(ctx context.Context) ([]Project, error) {
	hubs, err := p.engine.ActiveHubs(ctx, ProjectHub)
	if err != nil {
		return nil, err
	}
	projects := make([]Project, 0, len(hubs))
	for _, h := range hubs {
		pr, err := p.view(ctx, h, nil)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *pr)
	}
	return projects, nil
}

// Get returns the project at *at, or now when at is nil.
func (p *Projects) Get(ctx context.Context, key uuid.UUID, at *time.Time) (*Project, error) {
	hub, err := p.engine.Hub(ctx, ProjectHub, key)
	if err != nil {
		return nil, err
	}
	return p.view(ctx, *hub, at)
}

func (p *Projects) view(ctx context.Context, hub vault.Hub, at *time.Time) (*Project, error) {
	details, err := optional(p.engine.Payload(ctx, ProjectDetails, hub.Key, at))
	if err != nil {
		return nil, err
	}
	pr := &Project{
		Key:         hub.Key,
		Name:        hub.BusinessKey,
		StartDate:   stringPtr(details, "start_date"),
		EndDate:     stringPtr(details, "end_date"),
		Description: details.String("description"),
	}
	if f, ok := details["budget_days"].(float64); ok {
		pr.BudgetDays = &f
	}

	link, err := p.engine.Link(ctx, ProjectCustomer, hub.Key, uuid.Nil, at)
	switch {
	case err == nil:
		c, err := p.engine.Hub(ctx, CustomerHub, link.Members["hk_customer"])
		if err != nil {
			return nil, err
		}
		pr.Customer = &CustomerRef{Key: c.Key, Name: c.BusinessKey}
	case !errors.Is(err, vault.ErrNotFound):
		return nil, err
	}
	return pr, nil
}

// Create adds a project from {project_name, customer_id, start_date,
// end_date, budget_days, description}.
func (p *Projects) Create(ctx context.Context, input vault.Payload, source string) (*Project, error) {
	input = input.Clone()
	name, err := businessKey(input, "project_name")
	if err != nil {
		return nil, err
	}
	change, err := p.change(ctx, input, source)
	if err != nil {
		return nil, err
	}
	change.Payloads = map[*vault.SatelliteTable]vault.Payload{ProjectDetails: input}

	key, err := p.coord.CreateEntity(ctx, ProjectHub, name, change)
	if err != nil {
		return nil, err
	}
	return p.Get(ctx, key, nil)
}

// Update patches the project details. A "customer_id" key relinks the
// customer; null or "" unlinks it. The name cannot change.
func (p *Projects) Update(ctx context.Context, key uuid.UUID, input vault.Payload, source string) (*Project, error) {
	input = input.Clone()
	if v, ok := take(input, "project_name"); ok {
		hub, err := p.engine.Hub(ctx, ProjectHub, key)
		if err != nil {
			return nil, err
		}
		if s, _ := v.(string); NormalizeName(s) != hub.BusinessKey {
			return nil, vault.NewValidationError("project_name", "cannot be changed")
		}
	}
	change, err := p.change(ctx, input, source)
	if err != nil {
		return nil, err
	}
	if len(input) > 0 {
		change.Patches = map[*vault.SatelliteTable]vault.Payload{ProjectDetails: input}
	}

	if err := p.coord.UpdateEntity(ctx, ProjectHub, key, change); err != nil {
		return nil, err
	}
	return p.Get(ctx, key, nil)
}

// change takes customer_id out of input.
func (p *Projects) change(ctx context.Context, input vault.Payload, source string) (coordinator.Change, error) {
	change := coordinator.Change{Source: source, Check: checkProjectDetails}
	v, ok := take(input, "customer_id")
	if !ok {
		return change, nil
	}
	customer, err := parseKey("customer_id", v)
	if err != nil {
		return change, err
	}
	if customer == uuid.Nil {
		change.Unlinks = []*vault.LinkTable{ProjectCustomer}
		return change, nil
	}
	if err := p.member(ctx, CustomerHub, customer, "customer_id"); err != nil {
		return change, err
	}
	change.Links = []coordinator.LinkChange{{
		Table:   ProjectCustomer,
		Members: map[string]uuid.UUID{"hk_customer": customer},
	}}
	return change, nil
}

// maxBudgetDays is the first value numeric(10,2) cannot hold.
const maxBudgetDays = 1e8

var budgetDays = vault.Attribute{Name: "budget_days", Type: vault.Numeric}

func checkProjectDetails(sat *vault.SatelliteTable, p vault.Payload) error {
	if sat != ProjectDetails {
		return nil
	}
	if v, err := budgetDays.Encode(p["budget_days"]); err == nil && v != nil {
		switch f := v.(float64); {
		case f < 0:
			return vault.NewValidationError("budget_days", "must not be negative")
		case math.Round(f*100) >= maxBudgetDays*100:
			return vault.NewValidationError("budget_days", "must be less than 100000000")
		}
	}
	start, end := p.String("start_date"), p.String("end_date")
	if start == "" || end == "" {
		return nil
	}
	s, err1 := vault.ParseDate(start)
	e, err2 := vault.ParseDate(end)
	if err1 == nil && err2 == nil && e.Before(s) {
		return vault.NewValidationError("end_date", "must not be before start_date")
	}
	return nil
}

// Delete closes the project, its customer link, every current-project link
// and every time entry booked on it.
func (p *Projects) Delete(ctx context.Context, key uuid.UUID) error {
	return p.coord.DeleteEntity(ctx, ProjectHub, key)
}
