package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

// LinkStore implements vault.LinkStore for one link table.
type LinkStore struct {
	store *Store
	table *vault.LinkTable
}

func (l *LinkStore) memberColumns() []string {
	cols := make([]string, 0, len(l.table.Others)+2)
	for _, m := range l.table.Members() {
		cols = append(cols, m.Column)
	}
	if l.table.NaturalID != "" {
		cols = append(cols, l.table.NaturalID)
	}
	return cols
}

func (l *LinkStore) columns() string {
	return quote(l.table.Key) + ", " + quoteAll(l.memberColumns()) + ", seq, t_from, t_to, b_from, b_to, rec_src"
}

// scope builds the predicate selecting the links of anchor, narrowed to the
// natural id when the table has one.
func (l *LinkStore) scope(anchor, naturalID uuid.UUID) (string, []any, error) {
	where := quote(l.table.Anchor.Column) + " = ?"
	args := []any{anchor}
	if l.table.NaturalID == "" {
		if naturalID != uuid.Nil {
			return "", nil, vault.NewValidationError("natural_id", "%s has no natural id", l.table.Name)
		}
		return where, args, nil
	}
	if naturalID != uuid.Nil {
		where += " AND " + quote(l.table.NaturalID) + " = ?"
		args = append(args, naturalID)
	}
	return where, args, nil
}

func (l *LinkStore) checkMembers(members map[string]uuid.UUID) error {
	verr := &vault.ValidationError{}
	for col := range members {
		if _, ok := l.table.Member(col); !ok {
			verr.Add(col, "is not a member of %s", l.table.Name)
		}
	}
	for _, m := range l.table.Members() {
		if members[m.Column] == uuid.Nil {
			verr.Add(m.Column, "is required")
		}
	}
	return verr.OrNil()
}

// SetCurrentLink makes members the current association in its scope. An
// open link with identical members is kept; otherwise the open links of the
// scope are closed and a new link is inserted.
func (l *LinkStore) SetCurrentLink(ctx context.Context, members map[string]uuid.UUID, naturalID uuid.UUID, payload vault.Payload, source string) (*vault.Link, error) {
	if err := l.checkMembers(members); err != nil {
		return nil, err
	}
	if l.table.NaturalID == "" && naturalID != uuid.Nil {
		return nil, vault.NewValidationError("natural_id", "%s has no natural id", l.table.Name)
	}

	sat, hasSat := l.store.schema.SatelliteOf(l.table)
	var values []any
	if payload != nil {
		if !hasSat {
			return nil, vault.NewValidationError("payload", "%s carries no attributes", l.table.Name)
		}
		var err error
		if values, err = sat.Encode(payload); err != nil {
			return nil, err
		}
	}

	var link *vault.Link
	err := l.store.atomic(ctx, func(tx *Store) error {
		anchor := members[l.table.Anchor.Column]
		if err := tx.lockOwner(ctx, l.table.Anchor.Hub, anchor, "UPDATE"); err != nil {
			return err
		}
		for _, m := range l.table.Others {
			if err := tx.lockOwner(ctx, m.Hub, members[m.Column], "SHARE"); err != nil {
				return err
			}
		}

		natural := naturalID
		fresh := l.table.NaturalID != "" && natural == uuid.Nil
		if fresh {
			natural = uuid.New()
		}

		var open []vault.Link
		if !fresh {
			where, args, err := l.scope(anchor, natural)
			if err != nil {
				return err
			}
			q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s AND t_to IS NULL ORDER BY %s FOR UPDATE`,
				l.columns(), quote(l.table.Name), where, orderLatest)
			if open, err = l.scan(ctx, tx, q, args...); err != nil {
				return err
			}
		}

		if len(open) == 1 && open[0].SameMembers(members) {
			link = &open[0]
			if payload == nil {
				return nil
			}
			return tx.Satellites(sat).PutVersion(ctx, link.Key, payload, source)
		}

		var latest time.Time
		keys := make([]uuid.UUID, 0, len(open))
		for _, o := range open {
			if o.ValidFrom.After(latest) {
				latest = o.ValidFrom
			}
			keys = append(keys, o.Key)
		}
		now := tx.now(latest)

		if len(keys) > 0 {
			if err := tx.closeSatellites(ctx, l.table, keys, now); err != nil {
				return err
			}
			if err := l.closeKeys(ctx, tx, keys, now); err != nil {
				return err
			}
		}

		link = &vault.Link{
			Key:          uuid.New(),
			Members:      make(map[string]uuid.UUID, len(members)),
			ValidFrom:    now,
			BusinessFrom: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
			Source:       source,
		}
		for col, key := range members {
			link.Members[col] = key
		}
		if l.table.NaturalID != "" {
			link.NaturalID = natural
		}
		if values != nil {
			link.BusinessFrom, link.BusinessTo = sat.BusinessInterval(values, now)
		}
		if err := l.insert(ctx, tx, link); err != nil {
			return err
		}
		if payload == nil {
			return nil
		}
		return tx.Satellites(sat).PutVersion(ctx, link.Key, payload, source)
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (l *LinkStore) insert(ctx context.Context, tx *Store, link *vault.Link) error {
	args := []any{link.Key}
	for _, m := range l.table.Members() {
		args = append(args, link.Members[m.Column])
	}
	if l.table.NaturalID != "" {
		args = append(args, link.NaturalID)
	}
	args = append(args, link.ValidFrom, nil, businessDay(link.BusinessFrom), dateArg(link.BusinessTo), link.Source)

	q := fmt.Sprintf(`INSERT INTO %s (%s, %s, t_from, t_to, b_from, b_to, rec_src) VALUES (%s)`,
		quote(l.table.Name), quote(l.table.Key), quoteAll(l.memberColumns()), placeholders(len(args)))
	_, err := tx.exec(ctx, q, args...)
	return translate(err, vault.ErrConcurrentModification)
}

func (l *LinkStore) closeKeys(ctx context.Context, tx *Store, keys []uuid.UUID, now time.Time) error {
	q := fmt.Sprintf(`UPDATE %s SET %s WHERE %s IN ? AND t_to IS NULL`,
		quote(l.table.Name), closeRow, quote(l.table.Key))
	_, err := tx.exec(ctx, q, now, keys)
	return translate(err, vault.ErrConcurrentModification)
}

// GetCurrentLinkFor returns the open link of anchor with the latest t_from.
func (l *LinkStore) GetCurrentLinkFor(ctx context.Context, anchor uuid.UUID) (*vault.Link, error) {
	return l.GetCurrentLink(ctx, anchor, uuid.Nil)
}

// GetCurrentLink returns the open link in the (anchor, naturalID) scope.
func (l *LinkStore) GetCurrentLink(ctx context.Context, anchor, naturalID uuid.UUID) (*vault.Link, error) {
	where, args, err := l.scope(anchor, naturalID)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s AND t_to IS NULL ORDER BY %s LIMIT 1`,
		l.columns(), quote(l.table.Name), where, orderLatest)
	return l.first(ctx, anchor, q, args...)
}

// LockCurrentLink locks the anchor hub, then reads and locks the current link
// in scope. The lock order matches SetCurrentLink.
func (l *LinkStore) LockCurrentLink(ctx context.Context, anchor, naturalID uuid.UUID) (*vault.Link, error) {
	where, args, err := l.scope(anchor, naturalID)
	if err != nil {
		return nil, err
	}

	var link *vault.Link
	err = l.store.atomic(ctx, func(tx *Store) error {
		if err := tx.lockOwner(ctx, l.table.Anchor.Hub, anchor, "UPDATE"); err != nil {
			return err
		}
		q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s AND t_to IS NULL ORDER BY %s LIMIT 1 FOR UPDATE`,
			l.columns(), quote(l.table.Name), where, orderLatest)
		links, err := l.scan(ctx, tx, q, args...)
		if err != nil {
			return err
		}
		if len(links) == 0 {
			return fmt.Errorf("%w: no link in %s for %s", vault.ErrNotFound, l.table.Name, anchor)
		}
		link = &links[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// GetLinkAsOf returns the link in scope whose system interval contains at.
func (l *LinkStore) GetLinkAsOf(ctx context.Context, anchor, naturalID uuid.UUID, at time.Time) (*vault.Link, error) {
	where, args, err := l.scope(anchor, naturalID)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s AND %s ORDER BY %s LIMIT 1`,
		l.columns(), quote(l.table.Name), where, asOfWindow, orderLatest)
	return l.first(ctx, anchor, q, append(args, at, at)...)
}

// GetLink fetches a link row by key, open or closed.
func (l *LinkStore) GetLink(ctx context.Context, key uuid.UUID) (*vault.Link, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`,
		l.columns(), quote(l.table.Name), quote(l.table.Key))
	return l.first(ctx, key, q, key)
}

// ListCurrent returns the open links of anchor, oldest first.
func (l *LinkStore) ListCurrent(ctx context.Context, anchor uuid.UUID) ([]vault.Link, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? AND t_to IS NULL ORDER BY %s`,
		l.columns(), quote(l.table.Name), quote(l.table.Anchor.Column), orderHistory)
	return l.scan(ctx, l.store, q, anchor)
}

// History returns every link row in scope, oldest first.
func (l *LinkStore) History(ctx context.Context, anchor, naturalID uuid.UUID) ([]vault.Link, error) {
	where, args, err := l.scope(anchor, naturalID)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY %s`,
		l.columns(), quote(l.table.Name), where, orderHistory)
	return l.scan(ctx, l.store, q, args...)
}

// CloseLink closes an open link and its satellite.
func (l *LinkStore) CloseLink(ctx context.Context, key uuid.UUID) error {
	return l.store.atomic(ctx, func(tx *Store) error {
		closed, err := tx.lockRow(ctx, l.table, key, "UPDATE")
		if err != nil {
			return err
		}
		if closed {
			return fmt.Errorf("%w: %s %s", vault.ErrAlreadyClosed, l.table.Name, key)
		}

		now := tx.now(time.Time{})
		keys := []uuid.UUID{key}
		if err := tx.closeSatellites(ctx, l.table, keys, now); err != nil {
			return err
		}
		return l.closeKeys(ctx, tx, keys, now)
	})
}

// CloseAllFor closes every open link naming hub in column, and their
// satellites.
func (l *LinkStore) CloseAllFor(ctx context.Context, column string, hub uuid.UUID) (int64, error) {
	if _, ok := l.table.Member(column); !ok {
		return 0, vault.NewValidationError(column, "is not a member of %s", l.table.Name)
	}

	var closed int64
	err := l.store.atomic(ctx, func(tx *Store) error {
		q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? AND t_to IS NULL ORDER BY %s FOR UPDATE`,
			quote(l.table.Key), quote(l.table.Name), quote(column), orderLatest)
		rows, err := tx.query(ctx, q, hub)
		if err != nil {
			return translate(err, vault.ErrConcurrentModification)
		}
		var keys []uuid.UUID
		for rows.Next() {
			var key uuid.UUID
			if err := rows.Scan(&key); err != nil {
				_ = rows.Close()
				return err
			}
			keys = append(keys, key)
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return translate(err, vault.ErrConcurrentModification)
		}
		if len(keys) == 0 {
			return nil
		}

		now := tx.now(time.Time{})
		if err := tx.closeSatellites(ctx, l.table, keys, now); err != nil {
			return err
		}
		if err := l.closeKeys(ctx, tx, keys, now); err != nil {
			return err
		}
		closed = int64(len(keys))
		return nil
	})
	return closed, err
}

func (l *LinkStore) first(ctx context.Context, key uuid.UUID, q string, args ...any) (*vault.Link, error) {
	links, err := l.scan(ctx, l.store, q, args...)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%w: no link in %s for %s", vault.ErrNotFound, l.table.Name, key)
	}
	return &links[0], nil
}

func (l *LinkStore) scan(ctx context.Context, tx *Store, q string, args ...any) ([]vault.Link, error) {
	rows, err := tx.query(ctx, q, args...)
	if err != nil {
		return nil, translate(err, vault.ErrConcurrentModification)
	}
	defer func() { _ = rows.Close() }()

	members := l.table.Members()
	var links []vault.Link
	for rows.Next() {
		var (
			link vault.Link
			to   sql.NullTime
			bTo  sql.NullTime
			keys = make([]uuid.UUID, len(members))
		)
		dest := []any{&link.Key}
		for i := range keys {
			dest = append(dest, &keys[i])
		}
		if l.table.NaturalID != "" {
			dest = append(dest, &link.NaturalID)
		}
		dest = append(dest, &link.Seq, &link.ValidFrom, &to, &link.BusinessFrom, &bTo, &link.Source)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		link.Members = make(map[string]uuid.UUID, len(members))
		for i, m := range members {
			link.Members[m.Column] = keys[i]
		}
		link.ValidTo = nullTime(to)
		link.BusinessTo = nullTime(bTo)
		links = append(links, link)
	}
	return links, rows.Err()
}
