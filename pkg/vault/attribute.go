package vault

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// AttrType is the column type of a satellite attribute.
type AttrType int

const (
	Text AttrType = iota
	Integer
	Numeric
	Boolean
	Date
	TimeOfDay
)

func (t AttrType) String() string {
	switch t {
	case Text:
		return "text"
	case Integer:
		return "integer"
	case Numeric:
		return "numeric"
	case Boolean:
		return "boolean"
	case Date:
		return "date"
	case TimeOfDay:
		return "time"
	}
	return fmt.Sprintf("AttrType(%d)", int(t))
}

// Attribute is a typed payload column of a satellite.
type Attribute struct {
	Name     string
	Type     AttrType
	Required bool
}

// Encode converts a decoded JSON value into the value written to the
// database. Empty strings are treated as null for non-text attributes.
func (a Attribute) Encode(v any) (any, error) {
	if s, ok := v.(string); ok && a.Type != Text && strings.TrimSpace(s) == "" {
		v = nil
	}
	if v == nil {
		if a.Required {
			return nil, fmt.Errorf("is required")
		}
		return nil, nil
	}

	switch a.Type {
	case Text:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string")
		}
		if a.Required && strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("is required")
		}
		return s, nil
	case Integer:
		return encodeInteger(v)
	case Numeric:
		return encodeNumeric(v)
	case Boolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return nil, fmt.Errorf("must be a boolean")
			}
			return parsed, nil
		}
		return nil, fmt.Errorf("must be a boolean")
	case Date:
		t, err := ParseDate(v)
		if err != nil {
			return nil, err
		}
		return t.Format(DateLayout), nil
	case TimeOfDay:
		t, err := ParseClock(v)
		if err != nil {
			return nil, err
		}
		return t.Format(ClockLayout), nil
	}
	return nil, fmt.Errorf("unsupported attribute type %s", a.Type)
}

// Decode normalizes a value scanned from the database.
func (a Attribute) Decode(v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil
	}

	switch a.Type {
	case Text:
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	case Integer:
		if i, err := encodeInteger(v); err == nil {
			return i
		}
	case Numeric:
		if f, err := encodeNumeric(v); err == nil {
			return f
		}
	case Boolean:
		switch b := v.(type) {
		case bool:
			return b
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed
			}
		}
	case Date:
		switch d := v.(type) {
		case time.Time:
			return d.Format(DateLayout)
		case string:
			if len(d) >= len(DateLayout) {
				return d[:len(DateLayout)]
			}
		}
	case TimeOfDay:
		switch c := v.(type) {
		case time.Time:
			return c.Format(ClockLayout)
		case string:
			if len(c) >= len(ClockLayout) {
				return c[:len(ClockLayout)]
			}
		}
	}
	return v
}

// ParseDate accepts YYYY-MM-DD strings, RFC3339 timestamps and time values.
func ParseDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
	case string:
		d = strings.TrimSpace(d)
		if t, err := time.Parse(DateLayout, d); err == nil {
			return t, nil
		}
		if t, err := time.Parse(time.RFC3339, d); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("must be a date (YYYY-MM-DD)")
}

// ParseClock accepts HH:MM and HH:MM:SS strings.
func ParseClock(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("must be a time of day (HH:MM)")
	}
	s = strings.TrimSpace(s)
	if t, err := time.Parse(ClockLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("15:04:05", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("must be a time of day (HH:MM)")
}

func encodeInteger(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("must be an integer")
		}
		return int64(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("must be an integer")
		}
		return i, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("must be an integer")
		}
		return i, nil
	}
	return 0, fmt.Errorf("must be an integer")
}

func encodeNumeric(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("must be a number")
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("must be a number")
		}
		return f, nil
	}
	return 0, fmt.Errorf("must be a number")
}
