package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

// Ensure Store implements vault.Store
var _ vault.Store = (*Store)(nil)

// Store implements vault.Store on top of a *gorm.DB. A Store created by
// Transaction is bound to that transaction.
type Store struct {
	db     *gorm.DB
	schema *vault.Schema
	clock  vault.Clock
	inTx   bool
	// stamp is the instant of the enclosing transaction, taken on first use.
	stamp time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the system clock.
func WithClock(c vault.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// NewStore validates the schema and returns a Store using db.
func NewStore(db *gorm.DB, schema *vault.Schema, opts ...Option) (*Store, error) {
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	s := &Store{db: db, schema: schema, clock: vault.SystemClock}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Hubs(t *vault.HubTable) vault.HubStore {
	return &HubStore{store: s, table: t}
}

func (s *Store) Satellites(t *vault.SatelliteTable) vault.SatelliteStore {
	return &SatelliteStore{store: s, table: t}
}

func (s *Store) Links(t *vault.LinkTable) vault.LinkStore {
	return &LinkStore{store: s, table: t}
}

// Transaction runs fn in a read-committed transaction. Nested calls join the
// enclosing transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx vault.Store) error) error {
	return s.atomic(ctx, func(tx *Store) error {
		return fn(tx)
	})
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) atomic(ctx context.Context, fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, schema: s.schema, clock: s.clock, inTx: true})
	}, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	return translate(err, vault.ErrConcurrentModification)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res := s.db.WithContext(ctx).Exec(query, args...)
	return res.RowsAffected, res.Error
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.WithContext(ctx).Raw(query, args...).Rows()
}

// now returns the transaction instant, never earlier than floor. Every row
// closed or inserted in one transaction carries the same instant; floor only
// moves it forward when a concurrent writer's clock ran ahead.
func (s *Store) now(floor time.Time) time.Time {
	if s.stamp.IsZero() || !s.inTx {
		s.stamp = s.clock.Now()
	}
	if s.stamp.Before(floor) {
		s.stamp = floor
	}
	return s.stamp
}

// lockRow takes a row lock on an owner row and reports whether it is closed.
func (s *Store) lockRow(ctx context.Context, owner vault.Owner, key uuid.UUID, strength string) (bool, error) {
	q := fmt.Sprintf(`SELECT t_to FROM %s WHERE %s = ? FOR %s`,
		quote(owner.TableName()), quote(owner.KeyColumn()), strength)

	rows, err := s.query(ctx, q, key)
	if err != nil {
		return false, translate(err, vault.ErrConcurrentModification)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return false, translate(err, vault.ErrConcurrentModification)
		}
		return false, fmt.Errorf("%w: %s %s", notFound(owner), owner.TableName(), key)
	}
	var to sql.NullTime
	if err := rows.Scan(&to); err != nil {
		return false, err
	}
	return to.Valid, nil
}

// lockOwner locks an owner row that must still be open.
func (s *Store) lockOwner(ctx context.Context, owner vault.Owner, key uuid.UUID, strength string) error {
	closed, err := s.lockRow(ctx, owner, key, strength)
	if err != nil {
		return err
	}
	if closed {
		return fmt.Errorf("%w: %s %s", vault.ErrEntityInactive, owner.TableName(), key)
	}
	return nil
}

// closeSatellites closes the open satellite rows of the given owners.
func (s *Store) closeSatellites(ctx context.Context, owner vault.Owner, keys []uuid.UUID, now time.Time) error {
	if len(keys) == 0 {
		return nil
	}
	for _, sat := range s.schema.SatellitesOf(owner) {
		q := fmt.Sprintf(`UPDATE %s SET %s WHERE %s IN ? AND t_to IS NULL`,
			quote(sat.Name), closeRow, quote(sat.OwnerColumn()))
		if _, err := s.exec(ctx, q, now, keys); err != nil {
			return translate(err, vault.ErrConcurrentModification)
		}
	}
	return nil
}

func notFound(owner vault.Owner) error {
	if _, ok := owner.(*vault.HubTable); ok {
		return vault.ErrHubNotFound
	}
	return vault.ErrNotFound
}
