// Package temporal resolves current and as-of views over a vault.Store.
//
// Every read a handler makes goes through an Engine, so the "which row is
// current" policy is applied in one place: the latest t_from wins, then the
// highest seq. A nil as-of time means now. Nothing is cached between calls.
package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

// Engine answers point-in-time reads.
type Engine struct {
	store vault.Store
}

// New returns an Engine reading from store.
func New(store vault.Store) *Engine {
	return &Engine{store: store}
}

// Version returns the version of owner in sat that is current, or that was
// current at *at.
func (e *Engine) Version(ctx context.Context, sat *vault.SatelliteTable, owner uuid.UUID, at *time.Time) (*vault.Version, error) {
	s := e.store.Satellites(sat)
	if at == nil {
		return s.GetCurrent(ctx, owner)
	}
	return s.GetAsOf(ctx, owner, *at)
}

// Payload is Version without the row metadata.
func (e *Engine) Payload(ctx context.Context, sat *vault.SatelliteTable, owner uuid.UUID, at *time.Time) (vault.Payload, error) {
	v, err := e.Version(ctx, sat, owner, at)
	if err != nil {
		return nil, err
	}
	return v.Payload, nil
}

// Link returns the link in the (anchor, naturalID) scope at *at, or the
// current one when at is nil.
func (e *Engine) Link(ctx context.Context, table *vault.LinkTable, anchor, naturalID uuid.UUID, at *time.Time) (*vault.Link, error) {
	s := e.store.Links(table)
	if at == nil {
		return s.GetCurrentLink(ctx, anchor, naturalID)
	}
	return s.GetLinkAsOf(ctx, anchor, naturalID, *at)
}

// CurrentLinkFor answers "what is anchor's current X".
func (e *Engine) CurrentLinkFor(ctx context.Context, table *vault.LinkTable, anchor uuid.UUID) (*vault.Link, error) {
	return e.store.Links(table).GetCurrentLinkFor(ctx, anchor)
}

func (e *Engine) CurrentLinks(ctx context.Context, table *vault.LinkTable, anchor uuid.UUID) ([]vault.Link, error) {
	return e.store.Links(table).ListCurrent(ctx, anchor)
}

func (e *Engine) LinkHistory(ctx context.Context, table *vault.LinkTable, anchor, naturalID uuid.UUID) ([]vault.Link, error) {
	return e.store.Links(table).History(ctx, anchor, naturalID)
}

// FindHub returns the key of the active hub for businessKey.
func (e *Engine) FindHub(ctx context.Context, hub *vault.HubTable, businessKey string) (uuid.UUID, error) {
	key, found, err := e.store.Hubs(hub).FindActiveHub(ctx, businessKey)
	if err != nil {
		return uuid.Nil, err
	}
	if !found {
		return uuid.Nil, fmt.Errorf("%w: %s %s", vault.ErrHubNotFound, hub.Name, businessKey)
	}
	return key, nil
}

func (e *Engine) Hub(ctx context.Context, hub *vault.HubTable, key uuid.UUID) (*vault.Hub, error) {
	return e.store.Hubs(hub).GetHub(ctx, key)
}

func (e *Engine) ActiveHubs(ctx context.Context, hub *vault.HubTable) ([]vault.Hub, error) {
	return e.store.Hubs(hub).ListActive(ctx)
}

func (e *Engine) History(ctx context.Context, sat *vault.SatelliteTable, owner uuid.UUID) ([]vault.Version, error) {
	return e.store.Satellites(sat).History(ctx, owner)
}

// Range returns per owner the version visible at r.AsOf whose business date
// falls in [r.From, r.To).
func (e *Engine) Range(ctx context.Context, sat *vault.SatelliteTable, r vault.BusinessRange) ([]vault.Version, error) {
	return e.store.Satellites(sat).ScanBusinessRange(ctx, r)
}

// View selects one part of a denormalized link read.
type View struct {
	// Member is the link column whose hub is read. Empty reads the link
	// itself.
	Member string
	// Satellite to read. Nil yields the member hub's business key.
	Satellite *vault.SatelliteTable
	// As nests the result under this key. Empty merges payload attributes
	// into the result.
	As string
	// Optional views resolve to nil instead of failing with ErrNotFound.
	Optional bool
}

// Resolve composes the payloads of a link and its members, each read
// independently at the same instant.
func (e *Engine) Resolve(ctx context.Context, table *vault.LinkTable, link *vault.Link, at *time.Time, views ...View) (vault.Payload, error) {
	out := vault.Payload{}
	for _, v := range views {
		owner := link.Key
		var member vault.Member
		if v.Member != "" {
			m, ok := table.Member(v.Member)
			if !ok {
				return nil, fmt.Errorf("%s: unknown member %q", table.Name, v.Member)
			}
			member, owner = m, link.Members[v.Member]
		}

		key := v.As
		if key == "" && v.Satellite == nil {
			key = v.Member
		}

		value, err := e.resolve(ctx, member, owner, v, at)
		if err != nil {
			if v.Optional && (errors.Is(err, vault.ErrNotFound) || errors.Is(err, vault.ErrHubNotFound)) {
				if key != "" {
					out[key] = nil
				}
				continue
			}
			return nil, err
		}

		switch val := value.(type) {
		case vault.Payload:
			if key == "" {
				for k, x := range val {
					out[k] = x
				}
				continue
			}
			out[key] = val
		default:
			out[key] = val
		}
	}
	return out, nil
}

func (e *Engine) resolve(ctx context.Context, member vault.Member, owner uuid.UUID, v View, at *time.Time) (any, error) {
	if v.Satellite != nil {
		return e.Payload(ctx, v.Satellite, owner, at)
	}
	if member.Hub == nil {
		return nil, fmt.Errorf("view without satellite needs a member")
	}
	hub, err := e.Hub(ctx, member.Hub, owner)
	if err != nil {
		return nil, err
	}
	return hub.BusinessKey, nil
}
