package vault

import (
	"time"

	"github.com/google/uuid"
)

// Hub is the durable identity row of an entity.
type Hub struct {
	Key         uuid.UUID  `json:"key"`
	BusinessKey string     `json:"business_key"`
	ValidFrom   time.Time  `json:"valid_from"`
	ValidTo     *time.Time `json:"valid_to,omitempty"`
	Source      string     `json:"source"`
}

// Active reports whether the hub is open.
func (h Hub) Active() bool { return h.ValidTo == nil }

// Version is one satellite row.
type Version struct {
	Owner        uuid.UUID  `json:"owner"`
	Seq          int64      `json:"seq"`
	ValidFrom    time.Time  `json:"valid_from"`
	ValidTo      *time.Time `json:"valid_to,omitempty"`
	BusinessFrom time.Time  `json:"business_from"`
	BusinessTo   *time.Time `json:"business_to,omitempty"`
	Source       string     `json:"source"`
	Payload      Payload    `json:"payload"`
}

// Current reports whether the version is the open row.
func (v Version) Current() bool { return v.ValidTo == nil }

// Contains reports whether t lies in [ValidFrom, ValidTo).
func (v Version) Contains(t time.Time) bool {
	if t.Before(v.ValidFrom) {
		return false
	}
	return v.ValidTo == nil || t.Before(*v.ValidTo)
}

// Link is one link row.
type Link struct {
	Key          uuid.UUID            `json:"key"`
	Members      map[string]uuid.UUID `json:"members"`
	NaturalID    uuid.UUID            `json:"natural_id"`
	Seq          int64                `json:"seq"`
	ValidFrom    time.Time            `json:"valid_from"`
	ValidTo      *time.Time           `json:"valid_to,omitempty"`
	BusinessFrom time.Time            `json:"business_from"`
	BusinessTo   *time.Time           `json:"business_to,omitempty"`
	Source       string               `json:"source"`
}

// Current reports whether the link is open.
func (l Link) Current() bool { return l.ValidTo == nil }

// SameMembers reports whether both links reference the same hubs.
func (l Link) SameMembers(members map[string]uuid.UUID) bool {
	if len(l.Members) != len(members) {
		return false
	}
	for col, key := range members {
		if l.Members[col] != key {
			return false
		}
	}
	return true
}

// BusinessRange selects versions by business date. From is inclusive, To
// exclusive; zero values leave that side open. A nil AsOf reads current rows.
// A nil Owners reads every owner, an empty non-nil Owners matches nothing.
type BusinessRange struct {
	From   time.Time
	To     time.Time
	Owners []uuid.UUID
	AsOf   *time.Time
}
