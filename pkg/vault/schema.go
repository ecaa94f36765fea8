package vault

import (
	"fmt"
	"regexp"
)

var identifierRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Owner is a table whose rows own satellite versions: a hub or a link.
type Owner interface {
	TableName() string
	KeyColumn() string
}

// HubTable describes a hub: durable key column plus business key column.
type HubTable struct {
	Name        string
	Key         string
	BusinessKey string
}

func (h *HubTable) TableName() string { return h.Name }
func (h *HubTable) KeyColumn() string { return h.Key }

// Member is a hub referenced by a link column.
type Member struct {
	Column string
	Hub    *HubTable
}

// LinkTable describes an association between hubs. The anchor member scopes
// "current" lookups: a link answers "what is the anchor's current X". When
// NaturalID is set, the scope is (anchor, natural id) instead.
type LinkTable struct {
	Name      string
	Key       string
	Anchor    Member
	Others    []Member
	NaturalID string
}

func (l *LinkTable) TableName() string { return l.Name }
func (l *LinkTable) KeyColumn() string { return l.Key }

// Members returns the anchor followed by the other members.
func (l *LinkTable) Members() []Member {
	return append([]Member{l.Anchor}, l.Others...)
}

// Member looks up a member by column name.
func (l *LinkTable) Member(column string) (Member, bool) {
	for _, m := range l.Members() {
		if m.Column == column {
			return m, true
		}
	}
	return Member{}, false
}

// SatelliteTable describes a versioned payload table attached to an owner.
// The owner key column in the satellite has the same name as in the owner.
type SatelliteTable struct {
	Name       string
	Owner      Owner
	Attributes []Attribute

	// BusinessFrom and BusinessTo name date attributes that drive b_from and
	// b_to. When BusinessFrom is empty, b_from is the date of t_from.
	BusinessFrom string
	BusinessTo   string
}

func (s *SatelliteTable) TableName() string { return s.Name }

// OwnerColumn is the column holding the owner key.
func (s *SatelliteTable) OwnerColumn() string { return s.Owner.KeyColumn() }

// Attribute looks up a declared attribute.
func (s *SatelliteTable) Attribute(name string) (Attribute, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// Schema aggregates the tables the engine may touch.
type Schema struct {
	Hubs       []*HubTable
	Links      []*LinkTable
	Satellites []*SatelliteTable
}

// SatellitesOf returns the satellites owned by owner, in declaration order.
func (s *Schema) SatellitesOf(owner Owner) []*SatelliteTable {
	var sats []*SatelliteTable
	for _, sat := range s.Satellites {
		if sat.Owner == owner {
			sats = append(sats, sat)
		}
	}
	return sats
}

// SatelliteOf returns the satellite of a link, if it has one.
func (s *Schema) SatelliteOf(link *LinkTable) (*SatelliteTable, bool) {
	sats := s.SatellitesOf(link)
	if len(sats) == 0 {
		return nil, false
	}
	return sats[0], true
}

// LinkRef is a link column that references a given hub.
type LinkRef struct {
	Link   *LinkTable
	Column string
}

// LinksOf returns every link column referencing hub.
func (s *Schema) LinksOf(hub *HubTable) []LinkRef {
	var refs []LinkRef
	for _, l := range s.Links {
		for _, m := range l.Members() {
			if m.Hub == hub {
				refs = append(refs, LinkRef{Link: l, Column: m.Column})
			}
		}
	}
	return refs
}

// Validate checks identifiers and cross references.
func (s *Schema) Validate() error {
	hubs := make(map[*HubTable]bool)
	for _, h := range s.Hubs {
		if err := checkIdentifiers(h.Name, h.Key, h.BusinessKey); err != nil {
			return fmt.Errorf("hub %q: %w", h.Name, err)
		}
		hubs[h] = true
	}

	links := make(map[*LinkTable]bool)
	for _, l := range s.Links {
		if err := checkIdentifiers(l.Name, l.Key); err != nil {
			return fmt.Errorf("link %q: %w", l.Name, err)
		}
		if l.NaturalID != "" {
			if err := checkIdentifiers(l.NaturalID); err != nil {
				return fmt.Errorf("link %q: %w", l.Name, err)
			}
		}
		seen := make(map[string]bool)
		for _, m := range l.Members() {
			if err := checkIdentifiers(m.Column); err != nil {
				return fmt.Errorf("link %q: %w", l.Name, err)
			}
			if !hubs[m.Hub] {
				return fmt.Errorf("link %q: member %q references an unregistered hub", l.Name, m.Column)
			}
			if seen[m.Column] {
				return fmt.Errorf("link %q: duplicate member column %q", l.Name, m.Column)
			}
			seen[m.Column] = true
		}
		links[l] = true
	}

	owned := make(map[Owner]bool)
	for _, sat := range s.Satellites {
		if err := checkIdentifiers(sat.Name); err != nil {
			return fmt.Errorf("satellite %q: %w", sat.Name, err)
		}
		switch o := sat.Owner.(type) {
		case *HubTable:
			if !hubs[o] {
				return fmt.Errorf("satellite %q: owner hub is not registered", sat.Name)
			}
		case *LinkTable:
			if !links[o] {
				return fmt.Errorf("satellite %q: owner link is not registered", sat.Name)
			}
			if owned[o] {
				return fmt.Errorf("satellite %q: link %q already carries a satellite", sat.Name, o.Name)
			}
			owned[o] = true
		default:
			return fmt.Errorf("satellite %q: unsupported owner %T", sat.Name, sat.Owner)
		}
		if len(sat.Attributes) == 0 {
			return fmt.Errorf("satellite %q: no attributes declared", sat.Name)
		}
		for _, a := range sat.Attributes {
			if err := checkIdentifiers(a.Name); err != nil {
				return fmt.Errorf("satellite %q: %w", sat.Name, err)
			}
		}
		for _, name := range []string{sat.BusinessFrom, sat.BusinessTo} {
			if name == "" {
				continue
			}
			a, ok := sat.Attribute(name)
			if !ok || a.Type != Date {
				return fmt.Errorf("satellite %q: business date attribute %q must be a declared date", sat.Name, name)
			}
		}
	}
	return nil
}

func checkIdentifiers(names ...string) error {
	for _, n := range names {
		if !identifierRegex.MatchString(n) {
			return fmt.Errorf("invalid identifier %q", n)
		}
	}
	return nil
}
