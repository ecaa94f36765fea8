package vault

import (
	"sort"
	"time"
)

// Payload maps attribute names to values.
type Payload map[string]any

// Clone returns a shallow copy.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns a copy of p overlaid with patch.
func (p Payload) Merge(patch Payload) Payload {
	out := p.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// String returns the value for key if it is a string.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Bool returns the value for key if it is a bool.
func (p Payload) Bool(key string) bool {
	b, _ := p[key].(bool)
	return b
}

// Keys returns the payload keys, sorted.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Encode validates a payload against the satellite and returns the column
// values in attribute declaration order. Absent attributes are null.
func (s *SatelliteTable) Encode(p Payload) ([]any, error) {
	verr := &ValidationError{}
	for _, k := range p.Keys() {
		if _, ok := s.Attribute(k); !ok {
			verr.Add(k, "unknown attribute")
		}
	}

	values := make([]any, len(s.Attributes))
	for i, a := range s.Attributes {
		v, err := a.Encode(p[a.Name])
		if err != nil {
			verr.Add(a.Name, "%s", err.Error())
			continue
		}
		values[i] = v
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return values, nil
}

// Decode builds a payload from scanned column values.
func (s *SatelliteTable) Decode(values []any) Payload {
	p := make(Payload, len(s.Attributes))
	for i, a := range s.Attributes {
		if i < len(values) {
			p[a.Name] = a.Decode(values[i])
		}
	}
	return p
}

// BusinessInterval derives b_from and b_to for a new version of this
// satellite. Values must already be encoded.
func (s *SatelliteTable) BusinessInterval(values []any, now time.Time) (time.Time, *time.Time) {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var to *time.Time
	for i, a := range s.Attributes {
		if values[i] == nil {
			continue
		}
		switch a.Name {
		case s.BusinessFrom:
			if d, err := ParseDate(values[i]); err == nil {
				from = d
			}
		case s.BusinessTo:
			if d, err := ParseDate(values[i]); err == nil {
				to = &d
			}
		}
	}
	return from, to
}
