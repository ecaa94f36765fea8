package vault

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store hands out table-bound stores sharing one connection or transaction.
type Store interface {
	Hubs(t *HubTable) HubStore
	Satellites(t *SatelliteTable) SatelliteStore
	Links(t *LinkTable) LinkStore

	// Transaction runs fn in a read-committed transaction. Calls made
	// through the Store passed to fn join that transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

// HubStore manages durable identities of one hub table.
type HubStore interface {
	CreateHub(ctx context.Context, businessKey, source string) (uuid.UUID, error)
	CloseHub(ctx context.Context, key uuid.UUID) error
	ReopenHub(ctx context.Context, businessKey string) (uuid.UUID, error)
	FindActiveHub(ctx context.Context, businessKey string) (uuid.UUID, bool, error)
	GetHub(ctx context.Context, key uuid.UUID) (*Hub, error)
	LockActive(ctx context.Context, key uuid.UUID) error
	ListActive(ctx context.Context) ([]Hub, error)
}

// SatelliteStore manages the versions of one satellite table.
type SatelliteStore interface {
	PutVersion(ctx context.Context, owner uuid.UUID, payload Payload, source string) error
	LockCurrent(ctx context.Context, owner uuid.UUID) (*Version, error)
	GetCurrent(ctx context.Context, owner uuid.UUID) (*Version, error)
	GetAsOf(ctx context.Context, owner uuid.UUID, at time.Time) (*Version, error)
	CloseAll(ctx context.Context, owner uuid.UUID) (int64, error)
	History(ctx context.Context, owner uuid.UUID) ([]Version, error)
	ScanBusinessRange(ctx context.Context, r BusinessRange) ([]Version, error)
}

// LinkStore manages the rows of one link table.
type LinkStore interface {
	SetCurrentLink(ctx context.Context, members map[string]uuid.UUID, naturalID uuid.UUID, payload Payload, source string) (*Link, error)
	GetCurrentLinkFor(ctx context.Context, anchor uuid.UUID) (*Link, error)
	GetCurrentLink(ctx context.Context, anchor, naturalID uuid.UUID) (*Link, error)
	// LockCurrentLink locks the anchor hub, then the current link in the
	// (anchor, naturalID) scope, and returns that link.
	LockCurrentLink(ctx context.Context, anchor, naturalID uuid.UUID) (*Link, error)
	GetLinkAsOf(ctx context.Context, anchor, naturalID uuid.UUID, at time.Time) (*Link, error)
	GetLink(ctx context.Context, key uuid.UUID) (*Link, error)
	ListCurrent(ctx context.Context, anchor uuid.UUID) ([]Link, error)
	History(ctx context.Context, anchor, naturalID uuid.UUID) ([]Link, error)
	CloseLink(ctx context.Context, key uuid.UUID) error
	CloseAllFor(ctx context.Context, column string, hub uuid.UUID) (int64, error)
}
