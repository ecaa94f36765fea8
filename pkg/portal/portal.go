package portal

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mitarbeiterportal/portal/pkg/vault"
	"github.com/mitarbeiterportal/portal/pkg/vault/coordinator"
	"github.com/mitarbeiterportal/portal/pkg/vault/temporal"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Settings are the tunables the services read from configuration.
type Settings struct {
	WriteRetries        int
	MinPasswordLength   int
	DefaultWorkLocation string
}

// DefaultSettings match the configuration defaults.
var DefaultSettings = Settings{
	WriteRetries:        1,
	MinPasswordLength:   8,
	DefaultWorkLocation: "Büro",
}

// Services bundles the portal services over one store.
type Services struct {
	Accounts    *Accounts
	Projects    *Projects
	Customers   *Customers
	TimeEntries *TimeEntries
	Dashboard   *Dashboard
	History     *History
}

type base struct {
	engine   *temporal.Engine
	coord    *coordinator.Coordinator
	clock    vault.Clock
	settings Settings
}

// Option configures Services.
type Option func(*base)

// WithClock sets the clock used for "today" in dashboards and month
// filters. Row timestamps come from the store's clock.
func WithClock(c vault.Clock) Option {
	return func(b *base) { b.clock = c }
}

// NewServices wires the services to store.
func NewServices(store vault.Store, settings Settings, opts ...Option) *Services {
	b := base{
		engine:   temporal.New(store),
		coord:    coordinator.New(store, Schema, coordinator.WithRetries(settings.WriteRetries)),
		clock:    vault.SystemClock,
		settings: settings,
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.settings.MinPasswordLength <= 0 {
		b.settings.MinPasswordLength = DefaultSettings.MinPasswordLength
	}
	if b.settings.DefaultWorkLocation == "" {
		b.settings.DefaultWorkLocation = DefaultSettings.DefaultWorkLocation
	}

	return &Services{
		Accounts:    &Accounts{base: b},
		Projects:    &Projects{base: b},
		Customers:   &Customers{base: b},
		TimeEntries: &TimeEntries{base: b},
		Dashboard:   &Dashboard{base: b},
		History:     &History{base: b},
	}
}

func (b base) today() time.Time {
	now := b.clock.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// optional maps a missing row to nil.
func optional(p vault.Payload, err error) (vault.Payload, error) {
	if errors.Is(err, vault.ErrNotFound) {
		return vault.Payload{}, nil
	}
	return p, err
}

// take removes key from p and reports whether it was present.
func take(p vault.Payload, key string) (any, bool) {
	v, ok := p[key]
	delete(p, key)
	return v, ok
}

// parseKey reads a uuid from a decoded JSON value. A nil or empty value
// yields uuid.Nil.
func parseKey(field string, v any) (uuid.UUID, error) {
	switch k := v.(type) {
	case nil:
		return uuid.Nil, nil
	case uuid.UUID:
		return k, nil
	case string:
		if strings.TrimSpace(k) == "" {
			return uuid.Nil, nil
		}
		id, err := uuid.Parse(strings.TrimSpace(k))
		if err != nil {
			return uuid.Nil, vault.NewValidationError(field, "must be a uuid")
		}
		return id, nil
	}
	return uuid.Nil, vault.NewValidationError(field, "must be a uuid")
}

// businessKey reads a required name field.
func businessKey(p vault.Payload, field string) (string, error) {
	v, _ := take(p, field)
	s, ok := v.(string)
	if v != nil && !ok {
		return "", vault.NewValidationError(field, "must be a string")
	}
	s = NormalizeName(s)
	if s == "" {
		return "", vault.NewValidationError(field, "is required")
	}
	return s, nil
}

// member checks that key names an active hub referenced through field.
func (b base) member(ctx context.Context, hub *vault.HubTable, key uuid.UUID, field string) error {
	h, err := b.engine.Hub(ctx, hub, key)
	if errors.Is(err, vault.ErrHubNotFound) {
		return vault.NewValidationError(field, "does not exist")
	}
	if err != nil {
		return err
	}
	if !h.Active() {
		return vault.NewValidationError(field, "is no longer active")
	}
	return nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func stringPtr(p vault.Payload, key string) *string {
	if s, ok := p[key].(string); ok {
		return &s
	}
	return nil
}
