package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mitarbeiterportal/portal/pkg/vault"
)

// HubStore implements vault.HubStore for one hub table.
type HubStore struct {
	store *Store
	table *vault.HubTable
}

// CreateHub inserts a new open hub row under a random key.
func (h *HubStore) CreateHub(ctx context.Context, businessKey, source string) (uuid.UUID, error) {
	if strings.TrimSpace(businessKey) == "" {
		return uuid.Nil, vault.NewValidationError(h.table.BusinessKey, "is required")
	}

	key := uuid.New()
	err := h.store.atomic(ctx, func(tx *Store) error {
		_, found, err := tx.Hubs(h.table).FindActiveHub(ctx, businessKey)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: %s", vault.ErrDuplicateActiveHub, businessKey)
		}

		q := fmt.Sprintf(`INSERT INTO %s (%s, %s, t_from, t_to, rec_src) VALUES (?, ?, ?, NULL, ?)`,
			quote(h.table.Name), quote(h.table.Key), quote(h.table.BusinessKey))
		if _, err := tx.exec(ctx, q, key, businessKey, tx.now(time.Time{}), source); err != nil {
			return translate(err, vault.ErrDuplicateActiveHub)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return key, nil
}

// CloseHub sets t_to on an open hub. Dependent rows are left to the caller.
func (h *HubStore) CloseHub(ctx context.Context, key uuid.UUID) error {
	return h.store.atomic(ctx, func(tx *Store) error {
		closed, err := tx.lockRow(ctx, h.table, key, "UPDATE")
		if err != nil {
			return err
		}
		if closed {
			return fmt.Errorf("%w: %s %s", vault.ErrAlreadyClosed, h.table.Name, key)
		}

		q := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = ?`,
			quote(h.table.Name), closeRow, quote(h.table.Key))
		_, err = tx.exec(ctx, q, tx.now(time.Time{}), key)
		return translate(err, vault.ErrConcurrentModification)
	})
}

// ReopenHub reactivates the most recently closed hub for businessKey.
func (h *HubStore) ReopenHub(ctx context.Context, businessKey string) (uuid.UUID, error) {
	var key uuid.UUID
	err := h.store.atomic(ctx, func(tx *Store) error {
		_, active, err := tx.Hubs(h.table).FindActiveHub(ctx, businessKey)
		if err != nil {
			return err
		}
		if active {
			return fmt.Errorf("%w: %s", vault.ErrDuplicateActiveHub, businessKey)
		}

		q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? AND t_to IS NOT NULL ORDER BY t_to DESC, seq DESC LIMIT 1 FOR UPDATE`,
			quote(h.table.Key), quote(h.table.Name), quote(h.table.BusinessKey))
		found, err := tx.scanKey(ctx, &key, q, businessKey)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", vault.ErrHubNotFound, businessKey)
		}

		q = fmt.Sprintf(`UPDATE %s SET t_to = NULL WHERE %s = ?`,
			quote(h.table.Name), quote(h.table.Key))
		_, err = tx.exec(ctx, q, key)
		return translate(err, vault.ErrDuplicateActiveHub)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return key, nil
}

// FindActiveHub looks up the open hub for businessKey.
func (h *HubStore) FindActiveHub(ctx context.Context, businessKey string) (uuid.UUID, bool, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ? AND t_to IS NULL ORDER BY %s LIMIT 1`,
		quote(h.table.Key), quote(h.table.Name), quote(h.table.BusinessKey), orderLatest)

	var key uuid.UUID
	found, err := h.store.scanKey(ctx, &key, q, businessKey)
	if err != nil || !found {
		return uuid.Nil, false, err
	}
	return key, true, nil
}

// GetHub fetches a hub row, open or closed.
func (h *HubStore) GetHub(ctx context.Context, key uuid.UUID) (*vault.Hub, error) {
	q := fmt.Sprintf(`SELECT %s, %s, t_from, t_to, rec_src FROM %s WHERE %s = ?`,
		quote(h.table.Key), quote(h.table.BusinessKey), quote(h.table.Name), quote(h.table.Key))

	hubs, err := h.scanHubs(ctx, q, key)
	if err != nil {
		return nil, err
	}
	if len(hubs) == 0 {
		return nil, fmt.Errorf("%w: %s %s", vault.ErrHubNotFound, h.table.Name, key)
	}
	return &hubs[0], nil
}

// LockActive takes a FOR UPDATE lock on an open hub row.
func (h *HubStore) LockActive(ctx context.Context, key uuid.UUID) error {
	return h.store.lockOwner(ctx, h.table, key, "UPDATE")
}

// ListActive returns every open hub ordered by business key.
func (h *HubStore) ListActive(ctx context.Context) ([]vault.Hub, error) {
	q := fmt.Sprintf(`SELECT %s, %s, t_from, t_to, rec_src FROM %s WHERE t_to IS NULL ORDER BY %s, seq`,
		quote(h.table.Key), quote(h.table.BusinessKey), quote(h.table.Name), quote(h.table.BusinessKey))
	return h.scanHubs(ctx, q)
}

func (h *HubStore) scanHubs(ctx context.Context, q string, args ...any) ([]vault.Hub, error) {
	rows, err := h.store.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var hubs []vault.Hub
	for rows.Next() {
		var (
			hub vault.Hub
			to  sql.NullTime
		)
		if err := rows.Scan(&hub.Key, &hub.BusinessKey, &hub.ValidFrom, &to, &hub.Source); err != nil {
			return nil, err
		}
		hub.ValidTo = nullTime(to)
		hubs = append(hubs, hub)
	}
	return hubs, rows.Err()
}

// scanKey reads a single uuid column from the first row, if any.
func (s *Store) scanKey(ctx context.Context, dest *uuid.UUID, q string, args ...any) (bool, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return false, translate(err, vault.ErrConcurrentModification)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return false, rows.Err()
	}
	if err := rows.Scan(dest); err != nil {
		return false, err
	}
	return true, nil
}
