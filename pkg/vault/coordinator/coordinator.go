// Package coordinator is the write side of the vault. Handlers never call
// the close and insert primitives directly: every logical create, update,
// reassignment or delete goes through a Coordinator entry point, which runs
// it as one read-committed transaction and retries once on a concurrent
// modification.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

// Coordinator orchestrates close+insert sequences.
type Coordinator struct {
	store   vault.Store
	schema  *vault.Schema
	retries int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithRetries sets how often a transaction aborted by a concurrent
// modification is retried. The default is one.
func WithRetries(n int) Option {
	return func(c *Coordinator) {
		if n >= 0 {
			c.retries = n
		}
	}
}

func New(store vault.Store, schema *vault.Schema, opts ...Option) *Coordinator {
	c := &Coordinator{store: store, schema: schema, retries: 1}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Change describes the writes that accompany an entity create or update.
type Change struct {
	// Payloads replace the current version of each satellite.
	Payloads map[*vault.SatelliteTable]vault.Payload
	// Patches are merged into the current version under lock.
	Patches map[*vault.SatelliteTable]vault.Payload
	// Links are set with the entity as anchor.
	Links []LinkChange
	// Unlinks close the entity's current link in each table.
	Unlinks []*vault.LinkTable
	// Check validates the final payload of each satellite before it is
	// written.
	Check  func(sat *vault.SatelliteTable, merged vault.Payload) error
	Source string
}

// LinkChange sets one link. The anchor member is filled in with the entity
// key when absent.
type LinkChange struct {
	Table     *vault.LinkTable
	Members   map[string]uuid.UUID
	NaturalID uuid.UUID
	Payload   vault.Payload
}

// Revision changes the members and patches the payload of a current link.
type Revision struct {
	Members map[string]uuid.UUID
	Patch   vault.Payload
	Check   func(merged vault.Payload) error
	Source  string
}

func (c *Coordinator) run(ctx context.Context, op string, fn func(tx vault.Store) error) error {
	for attempt := 0; ; attempt++ {
		err := c.store.Transaction(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, vault.ErrConcurrentModification) || attempt >= c.retries || ctx.Err() != nil {
			return err
		}
		log.Printf("vault: retrying %s after concurrent modification: %v", op, err)
	}
}

// CreateEntity activates businessKey and applies change to it. A closed hub
// for the key is reopened rather than duplicated.
func (c *Coordinator) CreateEntity(ctx context.Context, hub *vault.HubTable, businessKey string, change Change) (uuid.UUID, error) {
	var key uuid.UUID
	err := c.run(ctx, "create "+hub.Name, func(tx vault.Store) error {
		hubs := tx.Hubs(hub)
		_, found, err := hubs.FindActiveHub(ctx, businessKey)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %s", vault.ErrDuplicateActiveHub, businessKey)
		}

		key, err = hubs.ReopenHub(ctx, businessKey)
		if errors.Is(err, vault.ErrHubNotFound) {
			key, err = hubs.CreateHub(ctx, businessKey, change.Source)
		}
		if err != nil {
			return err
		}
		return c.apply(ctx, tx, hub, key, change)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return key, nil
}

// UpdateEntity applies change to an active entity.
func (c *Coordinator) UpdateEntity(ctx context.Context, hub *vault.HubTable, key uuid.UUID, change Change) error {
	return c.run(ctx, "update "+hub.Name, func(tx vault.Store) error {
		if err := tx.Hubs(hub).LockActive(ctx, key); err != nil {
			return err
		}
		return c.apply(ctx, tx, hub, key, change)
	})
}

// DeleteEntity closes the hub, its satellites and every open link naming
// it, together with the link satellites.
func (c *Coordinator) DeleteEntity(ctx context.Context, hub *vault.HubTable, key uuid.UUID) error {
	return c.run(ctx, "delete "+hub.Name, func(tx vault.Store) error {
		err := tx.Hubs(hub).LockActive(ctx, key)
		if errors.Is(err, vault.ErrEntityInactive) {
			return fmt.Errorf("%w: %s %s", vault.ErrAlreadyClosed, hub.Name, key)
		}
		if err != nil {
			return err
		}

		for _, sat := range c.schema.SatellitesOf(hub) {
			if _, err := tx.Satellites(sat).CloseAll(ctx, key); err != nil {
				return err
			}
		}
		for _, ref := range c.schema.LinksOf(hub) {
			if _, err := tx.Links(ref.Link).CloseAllFor(ctx, ref.Column, key); err != nil {
				return err
			}
		}
		return tx.Hubs(hub).CloseHub(ctx, key)
	})
}

// ReassignLink makes members the current association in its scope.
func (c *Coordinator) ReassignLink(ctx context.Context, table *vault.LinkTable, members map[string]uuid.UUID, naturalID uuid.UUID, payload vault.Payload, source string) (*vault.Link, error) {
	var link *vault.Link
	err := c.run(ctx, "reassign "+table.Name, func(tx vault.Store) error {
		var err error
		link, err = tx.Links(table).SetCurrentLink(ctx, members, naturalID, payload, source)
		return err
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// ReviseLink rewrites the current link in the (anchor, naturalID) scope:
// members in rev override the current ones and rev.Patch is merged into the
// current link payload.
func (c *Coordinator) ReviseLink(ctx context.Context, table *vault.LinkTable, anchor, naturalID uuid.UUID, rev Revision) (*vault.Link, error) {
	var link *vault.Link
	err := c.run(ctx, "revise "+table.Name, func(tx vault.Store) error {
		links := tx.Links(table)
		cur, err := links.LockCurrentLink(ctx, anchor, naturalID)
		if err != nil {
			return err
		}

		members := make(map[string]uuid.UUID, len(cur.Members))
		for col, k := range cur.Members {
			members[col] = k
		}
		for col, k := range rev.Members {
			members[col] = k
		}

		var merged vault.Payload
		if sat, ok := c.schema.SatelliteOf(table); ok {
			base := vault.Payload{}
			v, err := tx.Satellites(sat).LockCurrent(ctx, cur.Key)
			switch {
			case err == nil:
				base = v.Payload
			case !errors.Is(err, vault.ErrNotFound):
				return err
			}
			merged = base.Merge(rev.Patch)
			if rev.Check != nil {
				if err := rev.Check(merged); err != nil {
					return err
				}
			}
		} else if len(rev.Patch) > 0 {
			return vault.NewValidationError("payload", "%s carries no attributes", table.Name)
		}

		link, err = links.SetCurrentLink(ctx, members, cur.NaturalID, merged, rev.Source)
		return err
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// DeleteLink closes the current link in the (anchor, naturalID) scope and
// its satellite.
func (c *Coordinator) DeleteLink(ctx context.Context, table *vault.LinkTable, anchor, naturalID uuid.UUID) error {
	return c.run(ctx, "delete "+table.Name, func(tx vault.Store) error {
		links := tx.Links(table)
		cur, err := links.LockCurrentLink(ctx, anchor, naturalID)
		if err != nil {
			return err
		}
		return links.CloseLink(ctx, cur.Key)
	})
}

func (c *Coordinator) apply(ctx context.Context, tx vault.Store, hub *vault.HubTable, key uuid.UUID, change Change) error {
	for _, sat := range c.schema.SatellitesOf(hub) {
		payload, replace := change.Payloads[sat]
		patch, merge := change.Patches[sat]
		if !replace && !merge {
			continue
		}

		if merge {
			base := vault.Payload{}
			v, err := tx.Satellites(sat).LockCurrent(ctx, key)
			switch {
			case err == nil:
				base = v.Payload
			case !errors.Is(err, vault.ErrNotFound):
				return err
			}
			if replace {
				base = payload
			}
			payload = base.Merge(patch)
		}

		if change.Check != nil {
			if err := change.Check(sat, payload); err != nil {
				return err
			}
		}
		if err := tx.Satellites(sat).PutVersion(ctx, key, payload, change.Source); err != nil {
			return err
		}
	}

	for _, lc := range change.Links {
		if lc.Table.Anchor.Hub != hub {
			return fmt.Errorf("link %s is not anchored on %s", lc.Table.Name, hub.Name)
		}
		members := make(map[string]uuid.UUID, len(lc.Members)+1)
		for col, k := range lc.Members {
			members[col] = k
		}
		if _, ok := members[lc.Table.Anchor.Column]; !ok {
			members[lc.Table.Anchor.Column] = key
		}
		if _, err := tx.Links(lc.Table).SetCurrentLink(ctx, members, lc.NaturalID, lc.Payload, change.Source); err != nil {
			return err
		}
	}

	for _, table := range change.Unlinks {
		links := tx.Links(table)
		cur, err := links.GetCurrentLinkFor(ctx, key)
		if errors.Is(err, vault.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := links.CloseLink(ctx, cur.Key); err != nil {
			return err
		}
	}
	return nil
}
