package portal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

// EntityHistory is the audit view of one entity.
type EntityHistory struct {
	Kind     Kind                       `json:"kind"`
	Hub      vault.Hub                  `json:"hub"`
	AsOf     *time.Time                 `json:"as_of,omitempty"`
	Payloads map[string]vault.Payload   `json:"payloads"`
	Versions map[string][]vault.Version `json:"versions"`
}

// History reads the full satellite history of hubs.
type History struct {
	base
}

// Entity returns the hub, the payloads visible at *at (now when nil) and
// every version of each satellite of the entity.
func (h *History) Entity(ctx context.Context, kind Kind, key uuid.UUID, at *time.Time) (*EntityHistory, error) {
	hubTable := kind.Hub()
	if hubTable == nil {
		return nil, vault.NewValidationError("kind", "unknown kind %s", kind)
	}
	hub, err := h.engine.Hub(ctx, hubTable, key)
	if err != nil {
		return nil, err
	}

	out := &EntityHistory{
		Kind:     kind,
		Hub:      *hub,
		AsOf:     at,
		Payloads: map[string]vault.Payload{},
		Versions: map[string][]vault.Version{},
	}
	for _, sat := range Schema.SatellitesOf(hubTable) {
		p, err := h.engine.Payload(ctx, sat, key, at)
		switch {
		case err == nil:
			if sat == UserLogin {
				p = redact(p)
			}
			out.Payloads[sat.Name] = p
		case !errors.Is(err, vault.ErrNotFound):
			return nil, err
		}

		versions, err := h.engine.History(ctx, sat, key)
		if err != nil {
			return nil, err
		}
		if sat == UserLogin {
			for i := range versions {
				versions[i].Payload = redact(versions[i].Payload)
			}
		}
		out.Versions[sat.Name] = versions
	}
	return out, nil
}

// ByBusinessKey is Entity for the active hub with businessKey.
func (h *History) ByBusinessKey(ctx context.Context, kind Kind, businessKey string, at *time.Time) (*EntityHistory, error) {
	hubTable := kind.Hub()
	if hubTable == nil {
		return nil, vault.NewValidationError("kind", "unknown kind %s", kind)
	}
	key, err := h.engine.FindHub(ctx, hubTable, kind.NormalizeKey(businessKey))
	if err != nil {
		return nil, err
	}
	return h.Entity(ctx, kind, key, at)
}

func redact(p vault.Payload) vault.Payload {
	out := p.Clone()
	if _, ok := out["password_hash"]; ok {
		out["password_hash"] = "[REDACTED]"
	}
	return out
}
