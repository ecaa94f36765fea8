package portal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mitarbeiterportal/portal/pkg/vault"
	"github.com/mitarbeiterportal/portal/pkg/vault/coordinator"
)

// Customer is the view of a customer.
type Customer struct {
	Key           uuid.UUID `json:"hk_customer"`
	Name          string    `json:"customer_name"`
	Address       string    `json:"address"`
	ContactPerson string    `json:"contact_person"`
}

// Customers manages customers.
type Customers struct {
	base
}

func (c *Customers) List(ctx context.Context) ([]Customer, error) {
	hubs, err := c.engine.ActiveHubs(ctx, CustomerHub)
	if err != nil {
		return nil, err
	}
	customers := make([]Customer, 0, len(hubs))
	for _, h := range hubs {
		cu, err := c.view(ctx, h, nil)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *cu)
	}
	return customers, nil
}

func (c *Customers) Get(ctx context.Context, key uuid.UUID, at *time.Time) (*Customer, error) {
	hub, err := c.engine.Hub(ctx, CustomerHub, key)
	if err != nil {
		return nil, err
	}
	return c.view(ctx, *hub, at)
}

func (c *Customers) view(ctx context.Context, hub vault.Hub, at *time.Time) (*Customer, error) {
	details, err := optional(c.engine.Payload(ctx, CustomerDetails, hub.Key, at))
	if err != nil {
		return nil, err
	}
	return &Customer{
		Key:           hub.Key,
		Name:          hub.BusinessKey,
		Address:       details.String("address"),
		ContactPerson: details.String("contact_person"),
	}, nil
}

// Create adds a customer from {customer_name, address, contact_person}.
func (c *Customers) Create(ctx context.Context, input vault.Payload, source string) (*Customer, error) {
	input = input.Clone()
	name, err := businessKey(input, "customer_name")
	if err != nil {
		return nil, err
	}
	key, err := c.coord.CreateEntity(ctx, CustomerHub, name, coordinator.Change{
		Payloads: map[*vault.SatelliteTable]vault.Payload{CustomerDetails: input},
		Source:   source,
	})
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, key, nil)
}

// Update patches address and contact person. The name cannot change.
func (c *Customers) Update(ctx context.Context, key uuid.UUID, input vault.Payload, source string) (*Customer, error) {
	input = input.Clone()
	if v, ok := take(input, "customer_name"); ok {
		hub, err := c.engine.Hub(ctx, CustomerHub, key)
		if err != nil {
			return nil, err
		}
		if s, _ := v.(string); NormalizeName(s) != hub.BusinessKey {
			return nil, vault.NewValidationError("customer_name", "cannot be changed")
		}
	}
	change := coordinator.Change{Source: source}
	if len(input) > 0 {
		change.Patches = map[*vault.SatelliteTable]vault.Payload{CustomerDetails: input}
	}
	if err := c.coord.UpdateEntity(ctx, CustomerHub, key, change); err != nil {
		return nil, err
	}
	return c.Get(ctx, key, nil)
}

// Delete closes the customer and unlinks it from its projects.
func (c *Customers) Delete(ctx context.Context, key uuid.UUID) error {
	return c.coord.DeleteEntity(ctx, CustomerHub, key)
}
