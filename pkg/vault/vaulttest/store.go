// Package vaulttest provides an in-memory vault.Store for tests.
//
// It follows the same ordering, locking and error rules as the GORM store:
// a transaction holds a store-wide lock and works on a copy of the state
// that replaces the original only on success.
package vaulttest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

// Ensure Store implements vault.Store
var _ vault.Store = (*Store)(nil)

type hubRow struct {
	vault.Hub
	Seq int64
}

type state struct {
	seq   int64
	hubs  map[string][]hubRow
	sats  map[string][]vault.Version
	links map[string][]vault.Link
}

func (st *state) clone() *state {
	out := &state{
		seq:   st.seq,
		hubs:  make(map[string][]hubRow, len(st.hubs)),
		sats:  make(map[string][]vault.Version, len(st.sats)),
		links: make(map[string][]vault.Link, len(st.links)),
	}
	for k, v := range st.hubs {
		out.hubs[k] = append([]hubRow(nil), v...)
	}
	for k, v := range st.sats {
		out.sats[k] = append([]vault.Version(nil), v...)
	}
	for k, v := range st.links {
		out.links[k] = append([]vault.Link(nil), v...)
	}
	return out
}

func (st *state) next() int64 {
	st.seq++
	return st.seq
}

// Store is an in-memory vault.Store.
type Store struct {
	mu     *sync.Mutex
	root   **state
	state  *state
	schema *vault.Schema
	clock  vault.Clock
	inTx   bool
	stamp  time.Time

	// failNext is returned by the next write and then cleared.
	failNext *error
}

// NewStore returns an empty store for schema. A nil clock uses the system
// clock.
func NewStore(schema *vault.Schema, clock vault.Clock) *Store {
	if clock == nil {
		clock = vault.SystemClock
	}
	st := &state{
		hubs:  map[string][]hubRow{},
		sats:  map[string][]vault.Version{},
		links: map[string][]vault.Link{},
	}
	var failNext error
	return &Store{
		mu:       &sync.Mutex{},
		root:     &st,
		schema:   schema,
		clock:    clock,
		failNext: &failNext,
	}
}

// FailNextWrite makes the next write return err, once.
func (s *Store) FailNextWrite(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.failNext = err
}

func (s *Store) Hubs(t *vault.HubTable) vault.HubStore {
	return &hubStore{store: s, table: t}
}

func (s *Store) Satellites(t *vault.SatelliteTable) vault.SatelliteStore {
	return &satelliteStore{store: s, table: t}
}

func (s *Store) Links(t *vault.LinkTable) vault.LinkStore {
	return &linkStore{store: s, table: t}
}

func (s *Store) Transaction(ctx context.Context, fn func(tx vault.Store) error) error {
	return s.atomic(ctx, func(tx *Store) error { return fn(tx) })
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) atomic(ctx context.Context, fn func(tx *Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := *s
	tx.state = (*s.root).clone()
	tx.inTx = true
	tx.stamp = time.Time{}
	if err := fn(&tx); err != nil {
		return err
	}
	*s.root = tx.state
	return nil
}

// read runs fn against the committed state, or the transaction's copy.
func (s *Store) read(fn func(st *state)) {
	if s.inTx {
		fn(s.state)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(*s.root)
}

func (s *Store) injected() error {
	if err := *s.failNext; err != nil {
		*s.failNext = nil
		return err
	}
	return nil
}

// now returns the instant shared by every write of the transaction.
func (s *Store) now(floor time.Time) time.Time {
	if s.stamp.IsZero() || !s.inTx {
		s.stamp = s.clock.Now()
	}
	if s.stamp.Before(floor) {
		s.stamp = floor
	}
	return s.stamp
}

// OpenVersions counts the open rows of owner in sat. Tests use it to check
// that at most one version is current.
func (s *Store) OpenVersions(sat *vault.SatelliteTable, owner uuid.UUID) int {
	n := 0
	s.read(func(st *state) {
		for _, v := range st.sats[sat.Name] {
			if v.Owner == owner && v.ValidTo == nil {
				n++
			}
		}
	})
	return n
}

// owner reports whether the owner row exists and is open.
func (st *state) owner(o vault.Owner, key uuid.UUID) (found, open bool) {
	switch t := o.(type) {
	case *vault.HubTable:
		for _, h := range st.hubs[t.Name] {
			if h.Key == key {
				return true, h.ValidTo == nil
			}
		}
	case *vault.LinkTable:
		for _, l := range st.links[t.Name] {
			if l.Key == key {
				return true, l.ValidTo == nil
			}
		}
	}
	return false, false
}

func (st *state) requireOpen(o vault.Owner, key uuid.UUID) error {
	found, open := st.owner(o, key)
	if !found {
		if _, ok := o.(*vault.HubTable); ok {
			return fmt.Errorf("%w: %s %s", vault.ErrHubNotFound, o.TableName(), key)
		}
		return fmt.Errorf("%w: %s %s", vault.ErrNotFound, o.TableName(), key)
	}
	if !open {
		return fmt.Errorf("%w: %s %s", vault.ErrEntityInactive, o.TableName(), key)
	}
	return nil
}

func closeAt(from, now time.Time) *time.Time {
	if now.Before(from) {
		now = from
	}
	return &now
}

func latestFirst[T any](rows []T, from func(T) time.Time, seq func(T) int64) {
	sort.SliceStable(rows, func(i, j int) bool {
		fi, fj := from(rows[i]), from(rows[j])
		if !fi.Equal(fj) {
			return fi.After(fj)
		}
		return seq(rows[i]) > seq(rows[j])
	})
}

func oldestFirst[T any](rows []T, from func(T) time.Time, seq func(T) int64) {
	sort.SliceStable(rows, func(i, j int) bool {
		fi, fj := from(rows[i]), from(rows[j])
		if !fi.Equal(fj) {
			return fi.Before(fj)
		}
		return seq(rows[i]) < seq(rows[j])
	})
}

func visible(from time.Time, to *time.Time, at time.Time) bool {
	return !from.After(at) && (to == nil || to.After(at))
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type hubStore struct {
	store *Store
	table *vault.HubTable
}

func (h *hubStore) active(st *state, businessKey string) (uuid.UUID, bool) {
	var rows []hubRow
	for _, r := range st.hubs[h.table.Name] {
		if r.BusinessKey == businessKey && r.ValidTo == nil {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return uuid.Nil, false
	}
	latestFirst(rows, func(r hubRow) time.Time { return r.ValidFrom }, func(r hubRow) int64 { return r.Seq })
	return rows[0].Key, true
}

func (h *hubStore) CreateHub(ctx context.Context, businessKey, source string) (uuid.UUID, error) {
	if strings.TrimSpace(businessKey) == "" {
		return uuid.Nil, vault.NewValidationError(h.table.BusinessKey, "is required")
	}
	key := uuid.New()
	err := h.store.atomic(ctx, func(tx *Store) error {
		if _, found := h.active(tx.state, businessKey); found {
			return fmt.Errorf("%w: %s", vault.ErrDuplicateActiveHub, businessKey)
		}
		if err := tx.injected(); err != nil {
			return err
		}
		tx.state.hubs[h.table.Name] = append(tx.state.hubs[h.table.Name], hubRow{
			Hub: vault.Hub{Key: key, BusinessKey: businessKey, ValidFrom: tx.now(time.Time{}), Source: source},
			Seq: tx.state.next(),
		})
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return key, nil
}

func (h *hubStore) CloseHub(ctx context.Context, key uuid.UUID) error {
	return h.store.atomic(ctx, func(tx *Store) error {
		rows := tx.state.hubs[h.table.Name]
		for i := range rows {
			if rows[i].Key != key {
				continue
			}
			if rows[i].ValidTo != nil {
				return fmt.Errorf("%w: %s %s", vault.ErrAlreadyClosed, h.table.Name, key)
			}
			if err := tx.injected(); err != nil {
				return err
			}
			rows[i].ValidTo = closeAt(rows[i].ValidFrom, tx.now(time.Time{}))
			return nil
		}
		return fmt.Errorf("%w: %s %s", vault.ErrHubNotFound, h.table.Name, key)
	})
}

func (h *hubStore) ReopenHub(ctx context.Context, businessKey string) (uuid.UUID, error) {
	var key uuid.UUID
	err := h.store.atomic(ctx, func(tx *Store) error {
		if _, found := h.active(tx.state, businessKey); found {
			return fmt.Errorf("%w: %s", vault.ErrDuplicateActiveHub, businessKey)
		}
		rows := tx.state.hubs[h.table.Name]
		best := -1
		for i, r := range rows {
			if r.BusinessKey != businessKey || r.ValidTo == nil {
				continue
			}
			if best < 0 || r.ValidTo.After(*rows[best].ValidTo) ||
				(r.ValidTo.Equal(*rows[best].ValidTo) && r.Seq > rows[best].Seq) {
				best = i
			}
		}
		if best < 0 {
			return fmt.Errorf("%w: %s", vault.ErrHubNotFound, businessKey)
		}
		if err := tx.injected(); err != nil {
			return err
		}
		rows[best].ValidTo = nil
		key = rows[best].Key
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return key, nil
}

func (h *hubStore) FindActiveHub(ctx context.Context, businessKey string) (uuid.UUID, bool, error) {
	var (
		key   uuid.UUID
		found bool
	)
	h.store.read(func(st *state) { key, found = h.active(st, businessKey) })
	return key, found, ctx.Err()
}

func (h *hubStore) GetHub(ctx context.Context, key uuid.UUID) (*vault.Hub, error) {
	var hub *vault.Hub
	h.store.read(func(st *state) {
		for _, r := range st.hubs[h.table.Name] {
			if r.Key == key {
				found := r.Hub
				hub = &found
				return
			}
		}
	})
	if hub == nil {
		return nil, fmt.Errorf("%w: %s %s", vault.ErrHubNotFound, h.table.Name, key)
	}
	return hub, nil
}

func (h *hubStore) LockActive(ctx context.Context, key uuid.UUID) error {
	var err error
	h.store.read(func(st *state) { err = st.requireOpen(h.table, key) })
	return err
}

func (h *hubStore) ListActive(ctx context.Context) ([]vault.Hub, error) {
	var rows []hubRow
	h.store.read(func(st *state) {
		for _, r := range st.hubs[h.table.Name] {
			if r.ValidTo == nil {
				rows = append(rows, r)
			}
		}
	})
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].BusinessKey != rows[j].BusinessKey {
			return rows[i].BusinessKey < rows[j].BusinessKey
		}
		return rows[i].Seq < rows[j].Seq
	})
	hubs := make([]vault.Hub, 0, len(rows))
	for _, r := range rows {
		hubs = append(hubs, r.Hub)
	}
	return hubs, nil
}

type satelliteStore struct {
	store *Store
	table *vault.SatelliteTable
}

func (s *satelliteStore) versions(st *state, keep func(vault.Version) bool) []vault.Version {
	var out []vault.Version
	for _, v := range st.sats[s.table.Name] {
		if keep(v) {
			v.Payload = v.Payload.Clone()
			out = append(out, v)
		}
	}
	return out
}

func versionFrom(v vault.Version) time.Time { return v.ValidFrom }
func versionSeq(v vault.Version) int64       { return v.Seq }

func (s *satelliteStore) PutVersion(ctx context.Context, owner uuid.UUID, payload vault.Payload, source string) error {
	values, err := s.table.Encode(payload)
	if err != nil {
		return err
	}
	return s.store.atomic(ctx, func(tx *Store) error {
		if err := tx.state.requireOpen(s.table.Owner, owner); err != nil {
			return err
		}
		if err := tx.injected(); err != nil {
			return err
		}
		rows := tx.state.sats[s.table.Name]
		var latest time.Time
		for _, v := range rows {
			if v.Owner == owner && v.ValidTo == nil && v.ValidFrom.After(latest) {
				latest = v.ValidFrom
			}
		}
		now := tx.now(latest)
		for i := range rows {
			if rows[i].Owner == owner && rows[i].ValidTo == nil {
				rows[i].ValidTo = closeAt(rows[i].ValidFrom, now)
			}
		}
		from, to := s.table.BusinessInterval(values, now)
		tx.state.sats[s.table.Name] = append(rows, vault.Version{
			Owner:        owner,
			Seq:          tx.state.next(),
			ValidFrom:    now,
			BusinessFrom: from,
			BusinessTo:   to,
			Source:       source,
			Payload:      s.table.Decode(values),
		})
		return nil
	})
}

func (s *satelliteStore) LockCurrent(ctx context.Context, owner uuid.UUID) (*vault.Version, error) {
	var err error
	s.store.read(func(st *state) { err = st.requireOpen(s.table.Owner, owner) })
	if err != nil {
		return nil, err
	}
	return s.GetCurrent(ctx, owner)
}

func (s *satelliteStore) GetCurrent(ctx context.Context, owner uuid.UUID) (*vault.Version, error) {
	var rows []vault.Version
	s.store.read(func(st *state) {
		rows = s.versions(st, func(v vault.Version) bool { return v.Owner == owner && v.ValidTo == nil })
	})
	return s.first(rows, owner)
}

func (s *satelliteStore) GetAsOf(ctx context.Context, owner uuid.UUID, at time.Time) (*vault.Version, error) {
	var rows []vault.Version
	s.store.read(func(st *state) {
		rows = s.versions(st, func(v vault.Version) bool { return v.Owner == owner && visible(v.ValidFrom, v.ValidTo, at) })
	})
	return s.first(rows, owner)
}

func (s *satelliteStore) first(rows []vault.Version, owner uuid.UUID) (*vault.Version, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no version in %s for %s", vault.ErrNotFound, s.table.Name, owner)
	}
	latestFirst(rows, versionFrom, versionSeq)
	return &rows[0], nil
}

func (s *satelliteStore) CloseAll(ctx context.Context, owner uuid.UUID) (int64, error) {
	var n int64
	err := s.store.atomic(ctx, func(tx *Store) error {
		n = tx.closeVersions(s.table, []uuid.UUID{owner}, tx.now(time.Time{}))
		return nil
	})
	return n, err
}

func (s *Store) closeVersions(sat *vault.SatelliteTable, owners []uuid.UUID, now time.Time) int64 {
	var n int64
	rows := s.state.sats[sat.Name]
	for i := range rows {
		if rows[i].ValidTo != nil {
			continue
		}
		for _, o := range owners {
			if rows[i].Owner == o {
				rows[i].ValidTo = closeAt(rows[i].ValidFrom, now)
				n++
				break
			}
		}
	}
	return n
}

func (s *satelliteStore) History(ctx context.Context, owner uuid.UUID) ([]vault.Version, error) {
	var rows []vault.Version
	s.store.read(func(st *state) {
		rows = s.versions(st, func(v vault.Version) bool { return v.Owner == owner })
	})
	oldestFirst(rows, versionFrom, versionSeq)
	return rows, nil
}

func (s *satelliteStore) ScanBusinessRange(ctx context.Context, r vault.BusinessRange) ([]vault.Version, error) {
	if r.Owners != nil && len(r.Owners) == 0 {
		return nil, nil
	}
	owners := make(map[uuid.UUID]bool, len(r.Owners))
	for _, o := range r.Owners {
		owners[o] = true
	}

	var rows []vault.Version
	s.store.read(func(st *state) {
		rows = s.versions(st, func(v vault.Version) bool {
			if r.Owners != nil && !owners[v.Owner] {
				return false
			}
			if r.AsOf == nil && v.ValidTo != nil {
				return false
			}
			if r.AsOf != nil && !visible(v.ValidFrom, v.ValidTo, *r.AsOf) {
				return false
			}
			if !r.From.IsZero() && v.BusinessFrom.Before(day(r.From)) {
				return false
			}
			return r.To.IsZero() || v.BusinessFrom.Before(day(r.To))
		})
	})

	latestFirst(rows, versionFrom, versionSeq)
	seen := make(map[uuid.UUID]bool)
	var out []vault.Version
	for _, v := range rows {
		if !seen[v.Owner] {
			seen[v.Owner] = true
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].BusinessFrom.Equal(out[j].BusinessFrom) {
			return out[i].BusinessFrom.Before(out[j].BusinessFrom)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

type linkStore struct {
	store *Store
	table *vault.LinkTable
}

func linkFrom(l vault.Link) time.Time { return l.ValidFrom }
func linkSeq(l vault.Link) int64       { return l.Seq }

func (l *linkStore) inScope(link vault.Link, anchor, naturalID uuid.UUID) bool {
	if link.Members[l.table.Anchor.Column] != anchor {
		return false
	}
	return naturalID == uuid.Nil || link.NaturalID == naturalID
}

func (l *linkStore) links(st *state, keep func(vault.Link) bool) []vault.Link {
	var out []vault.Link
	for _, link := range st.links[l.table.Name] {
		if keep(link) {
			out = append(out, link)
		}
	}
	return out
}

func (l *linkStore) checkNatural(naturalID uuid.UUID) error {
	if l.table.NaturalID == "" && naturalID != uuid.Nil {
		return vault.NewValidationError("natural_id", "%s has no natural id", l.table.Name)
	}
	return nil
}

func (l *linkStore) SetCurrentLink(ctx context.Context, members map[string]uuid.UUID, naturalID uuid.UUID, payload vault.Payload, source string) (*vault.Link, error) {
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
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if err := l.checkNatural(naturalID); err != nil {
		return nil, err
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

	var result *vault.Link
	err := l.store.atomic(ctx, func(tx *Store) error {
		anchor := members[l.table.Anchor.Column]
		for _, m := range l.table.Members() {
			if err := tx.state.requireOpen(m.Hub, members[m.Column]); err != nil {
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
			open = l.links(tx.state, func(link vault.Link) bool {
				return link.ValidTo == nil && l.inScope(link, anchor, natural)
			})
		}
		if len(open) == 1 && open[0].SameMembers(members) {
			kept := open[0]
			result = &kept
			if payload == nil {
				return nil
			}
			return tx.Satellites(sat).PutVersion(ctx, kept.Key, payload, source)
		}

		if err := tx.injected(); err != nil {
			return err
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
		tx.closeLinks(l.table, keys, now)

		link := vault.Link{
			Key:          uuid.New(),
			Members:      make(map[string]uuid.UUID, len(members)),
			Seq:          tx.state.next(),
			ValidFrom:    now,
			BusinessFrom: day(now),
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
		tx.state.links[l.table.Name] = append(tx.state.links[l.table.Name], link)
		result = &link
		if payload == nil {
			return nil
		}
		return tx.Satellites(sat).PutVersion(ctx, link.Key, payload, source)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// closeLinks closes the given open links and their satellites.
func (s *Store) closeLinks(table *vault.LinkTable, keys []uuid.UUID, now time.Time) int64 {
	if len(keys) == 0 {
		return 0
	}
	for _, sat := range s.schema.SatellitesOf(table) {
		s.closeVersions(sat, keys, now)
	}
	var n int64
	rows := s.state.links[table.Name]
	for i := range rows {
		if rows[i].ValidTo != nil {
			continue
		}
		for _, k := range keys {
			if rows[i].Key == k {
				rows[i].ValidTo = closeAt(rows[i].ValidFrom, now)
				n++
				break
			}
		}
	}
	return n
}

func (l *linkStore) first(rows []vault.Link, key uuid.UUID) (*vault.Link, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no link in %s for %s", vault.ErrNotFound, l.table.Name, key)
	}
	latestFirst(rows, linkFrom, linkSeq)
	return &rows[0], nil
}

func (l *linkStore) GetCurrentLinkFor(ctx context.Context, anchor uuid.UUID) (*vault.Link, error) {
	return l.GetCurrentLink(ctx, anchor, uuid.Nil)
}

func (l *linkStore) GetCurrentLink(ctx context.Context, anchor, naturalID uuid.UUID) (*vault.Link, error) {
	if err := l.checkNatural(naturalID); err != nil {
		return nil, err
	}
	var rows []vault.Link
	l.store.read(func(st *state) {
		rows = l.links(st, func(link vault.Link) bool { return link.ValidTo == nil && l.inScope(link, anchor, naturalID) })
	})
	return l.first(rows, anchor)
}

func (l *linkStore) LockCurrentLink(ctx context.Context, anchor, naturalID uuid.UUID) (*vault.Link, error) {
	if err := l.checkNatural(naturalID); err != nil {
		return nil, err
	}
	var link *vault.Link
	err := l.store.atomic(ctx, func(tx *Store) error {
		if err := tx.state.requireOpen(l.table.Anchor.Hub, anchor); err != nil {
			return err
		}
		rows := l.links(tx.state, func(link vault.Link) bool { return link.ValidTo == nil && l.inScope(link, anchor, naturalID) })
		var err error
		link, err = l.first(rows, anchor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (l *linkStore) GetLinkAsOf(ctx context.Context, anchor, naturalID uuid.UUID, at time.Time) (*vault.Link, error) {
	if err := l.checkNatural(naturalID); err != nil {
		return nil, err
	}
	var rows []vault.Link
	l.store.read(func(st *state) {
		rows = l.links(st, func(link vault.Link) bool {
			return l.inScope(link, anchor, naturalID) && visible(link.ValidFrom, link.ValidTo, at)
		})
	})
	return l.first(rows, anchor)
}

func (l *linkStore) GetLink(ctx context.Context, key uuid.UUID) (*vault.Link, error) {
	var rows []vault.Link
	l.store.read(func(st *state) {
		rows = l.links(st, func(link vault.Link) bool { return link.Key == key })
	})
	return l.first(rows, key)
}

func (l *linkStore) ListCurrent(ctx context.Context, anchor uuid.UUID) ([]vault.Link, error) {
	var rows []vault.Link
	l.store.read(func(st *state) {
		rows = l.links(st, func(link vault.Link) bool { return link.ValidTo == nil && l.inScope(link, anchor, uuid.Nil) })
	})
	oldestFirst(rows, linkFrom, linkSeq)
	return rows, nil
}

func (l *linkStore) History(ctx context.Context, anchor, naturalID uuid.UUID) ([]vault.Link, error) {
	if err := l.checkNatural(naturalID); err != nil {
		return nil, err
	}
	var rows []vault.Link
	l.store.read(func(st *state) {
		rows = l.links(st, func(link vault.Link) bool { return l.inScope(link, anchor, naturalID) })
	})
	oldestFirst(rows, linkFrom, linkSeq)
	return rows, nil
}

func (l *linkStore) CloseLink(ctx context.Context, key uuid.UUID) error {
	return l.store.atomic(ctx, func(tx *Store) error {
		found, open := tx.state.owner(l.table, key)
		if !found {
			return fmt.Errorf("%w: %s %s", vault.ErrNotFound, l.table.Name, key)
		}
		if !open {
			return fmt.Errorf("%w: %s %s", vault.ErrAlreadyClosed, l.table.Name, key)
		}
		if err := tx.injected(); err != nil {
			return err
		}
		tx.closeLinks(l.table, []uuid.UUID{key}, tx.now(time.Time{}))
		return nil
	})
}

func (l *linkStore) CloseAllFor(ctx context.Context, column string, hub uuid.UUID) (int64, error) {
	if _, ok := l.table.Member(column); !ok {
		return 0, vault.NewValidationError(column, "is not a member of %s", l.table.Name)
	}
	var n int64
	err := l.store.atomic(ctx, func(tx *Store) error {
		var keys []uuid.UUID
		for _, link := range tx.state.links[l.table.Name] {
			if link.ValidTo == nil && link.Members[column] == hub {
				keys = append(keys, link.Key)
			}
		}
		n = tx.closeLinks(l.table, keys, tx.now(time.Time{}))
		return nil
	})
	return n, err
}
