package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

// SatelliteStore implements vault.SatelliteStore for one satellite table.
type SatelliteStore struct {
	store *Store
	table *vault.SatelliteTable
}

func (s *SatelliteStore) columns() string {
	cols := []string{quote(s.table.OwnerColumn()), "seq", "t_from", "t_to", "b_from", "b_to", "rec_src"}
	for _, a := range s.table.Attributes {
		cols = append(cols, quote(a.Name))
	}
	return strings.Join(cols, ", ")
}

// PutVersion closes the open version of owner and inserts payload as the
// new current version.
func (s *SatelliteStore) PutVersion(ctx context.Context, owner uuid.UUID, payload vault.Payload, source string) error {
	values, err := s.table.Encode(payload)
	if err != nil {
		return err
	}

	return s.store.atomic(ctx, func(tx *Store) error {
		if err := tx.lockOwner(ctx, s.table.Owner, owner, "UPDATE"); err != nil {
			return err
		}
		open, latest, err := s.lockOpen(ctx, tx, owner)
		if err != nil {
			return err
		}

		now := tx.now(latest)
		if open > 0 {
			if err := s.closeOpen(ctx, tx, owner, now); err != nil {
				return err
			}
		}
		return s.insert(ctx, tx, owner, values, now, source)
	})
}

// lockOpen locks the open rows of owner and returns how many there are and
// the latest t_from among them.
func (s *SatelliteStore) lockOpen(ctx context.Context, tx *Store, owner uuid.UUID) (int, time.Time, error) {
	q := fmt.Sprintf(`SELECT t_from FROM %s WHERE %s = ? AND t_to IS NULL ORDER BY %s FOR UPDATE`,
		quote(s.table.Name), quote(s.table.OwnerColumn()), orderLatest)

	rows, err := tx.query(ctx, q, owner)
	if err != nil {
		return 0, time.Time{}, translate(err, vault.ErrConcurrentModification)
	}
	defer func() { _ = rows.Close() }()

	var (
		n      int
		latest time.Time
	)
	for rows.Next() {
		var from time.Time
		if err := rows.Scan(&from); err != nil {
			return 0, time.Time{}, err
		}
		if n == 0 {
			latest = from
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return 0, time.Time{}, translate(err, vault.ErrConcurrentModification)
	}
	return n, latest, nil
}

func (s *SatelliteStore) closeOpen(ctx context.Context, tx *Store, owner uuid.UUID, now time.Time) error {
	q := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = ? AND t_to IS NULL`,
		quote(s.table.Name), closeRow, quote(s.table.OwnerColumn()))
	_, err := tx.exec(ctx, q, now, owner)
	return translate(err, vault.ErrConcurrentModification)
}

func (s *SatelliteStore) insert(ctx context.Context, tx *Store, owner uuid.UUID, values []any, now time.Time, source string) error {
	from, to := s.table.BusinessInterval(values, now)

	cols := []string{quote(s.table.OwnerColumn()), "t_from", "t_to", "b_from", "b_to", "rec_src"}
	args := []any{owner, now, nil, businessDay(from), dateArg(to), source}
	for i, a := range s.table.Attributes {
		cols = append(cols, quote(a.Name))
		args = append(args, values[i])
	}

	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		quote(s.table.Name), strings.Join(cols, ", "), placeholders(len(args)))
	_, err := tx.exec(ctx, q, args...)
	return translate(err, vault.ErrConcurrentModification)
}

// LockCurrent locks owner and its open version and returns that version.
func (s *SatelliteStore) LockCurrent(ctx context.Context, owner uuid.UUID) (*vault.Version, error) {
	var current *vault.Version
	err := s.store.atomic(ctx, func(tx *Store) error {
		if err := tx.lockOwner(ctx, s.table.Owner, owner, "UPDATE"); err != nil {
			return err
		}
		q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? AND t_to IS NULL ORDER BY %s FOR UPDATE`,
			s.columns(), quote(s.table.Name), quote(s.table.OwnerColumn()), orderLatest)
		versions, err := s.scan(ctx, tx, q, owner)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			return s.notFound(owner)
		}
		current = &versions[0]
		return nil
	})
	return current, err
}

// GetCurrent returns the open version of owner.
func (s *SatelliteStore) GetCurrent(ctx context.Context, owner uuid.UUID) (*vault.Version, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? AND t_to IS NULL ORDER BY %s LIMIT 1`,
		s.columns(), quote(s.table.Name), quote(s.table.OwnerColumn()), orderLatest)
	return s.first(ctx, owner, q, owner)
}

// GetAsOf returns the version of owner whose system interval contains at.
func (s *SatelliteStore) GetAsOf(ctx context.Context, owner uuid.UUID, at time.Time) (*vault.Version, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? AND %s ORDER BY %s LIMIT 1`,
		s.columns(), quote(s.table.Name), quote(s.table.OwnerColumn()), asOfWindow, orderLatest)
	return s.first(ctx, owner, q, owner, at, at)
}

// CloseAll closes the open versions of owner without a replacement.
func (s *SatelliteStore) CloseAll(ctx context.Context, owner uuid.UUID) (int64, error) {
	var closed int64
	err := s.store.atomic(ctx, func(tx *Store) error {
		open, latest, err := s.lockOpen(ctx, tx, owner)
		if err != nil || open == 0 {
			return err
		}
		q := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = ? AND t_to IS NULL`,
			quote(s.table.Name), closeRow, quote(s.table.OwnerColumn()))
		closed, err = tx.exec(ctx, q, tx.now(latest), owner)
		return translate(err, vault.ErrConcurrentModification)
	})
	return closed, err
}

// History returns every version of owner, oldest first.
func (s *SatelliteStore) History(ctx context.Context, owner uuid.UUID) ([]vault.Version, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? ORDER BY %s`,
		s.columns(), quote(s.table.Name), quote(s.table.OwnerColumn()), orderHistory)
	return s.scan(ctx, s.store, q, owner)
}

// ScanBusinessRange returns, per owner, the version visible at r.AsOf whose
// b_from lies in [r.From, r.To). Results are ordered by b_from.
func (s *SatelliteStore) ScanBusinessRange(ctx context.Context, r vault.BusinessRange) ([]vault.Version, error) {
	if r.Owners != nil && len(r.Owners) == 0 {
		return nil, nil
	}

	var (
		where []string
		args  []any
	)
	if r.AsOf == nil {
		where = append(where, "t_to IS NULL")
	} else {
		where = append(where, asOfWindow)
		args = append(args, *r.AsOf, *r.AsOf)
	}
	if !r.From.IsZero() {
		where = append(where, "b_from >= ?")
		args = append(args, businessDay(r.From))
	}
	if !r.To.IsZero() {
		where = append(where, "b_from < ?")
		args = append(args, businessDay(r.To))
	}
	if r.Owners != nil {
		where = append(where, quote(s.table.OwnerColumn())+" IN ?")
		args = append(args, r.Owners)
	}

	owner := quote(s.table.OwnerColumn())
	q := fmt.Sprintf(`SELECT DISTINCT ON (%s) %s FROM %s WHERE %s ORDER BY %s, %s`,
		owner, s.columns(), quote(s.table.Name), strings.Join(where, " AND "), owner, orderLatest)

	versions, err := s.scan(ctx, s.store, q, args...)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(versions, func(i, j int) bool {
		if !versions[i].BusinessFrom.Equal(versions[j].BusinessFrom) {
			return versions[i].BusinessFrom.Before(versions[j].BusinessFrom)
		}
		return versions[i].Seq < versions[j].Seq
	})
	return versions, nil
}

func (s *SatelliteStore) first(ctx context.Context, owner uuid.UUID, q string, args ...any) (*vault.Version, error) {
	versions, err := s.scan(ctx, s.store, q, args...)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, s.notFound(owner)
	}
	return &versions[0], nil
}

func (s *SatelliteStore) notFound(owner uuid.UUID) error {
	return fmt.Errorf("%w: no version in %s for %s", vault.ErrNotFound, s.table.Name, owner)
}

func (s *SatelliteStore) scan(ctx context.Context, tx *Store, q string, args ...any) ([]vault.Version, error) {
	rows, err := tx.query(ctx, q, args...)
	if err != nil {
		return nil, translate(err, vault.ErrConcurrentModification)
	}
	defer func() { _ = rows.Close() }()

	var versions []vault.Version
	for rows.Next() {
		var (
			v      vault.Version
			to     sql.NullTime
			bTo    sql.NullTime
			values = make([]any, len(s.table.Attributes))
		)
		dest := []any{&v.Owner, &v.Seq, &v.ValidFrom, &to, &v.BusinessFrom, &bTo, &v.Source}
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		v.ValidTo = nullTime(to)
		v.BusinessTo = nullTime(bTo)
		v.Payload = s.table.Decode(values)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
