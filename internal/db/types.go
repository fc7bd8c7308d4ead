package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// jsonbBytes coerces whatever the driver hands back for a jsonb column into
// raw bytes. Drivers disagree on []byte vs string; nil means SQL NULL.
func jsonbBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("dbtypes: cannot scan type %T as jsonb", src)
	}
}

// StringSlice stores an ordered list of tags (cuisine, categories) in a
// jsonb column. NULL scans as an empty list and nil marshals as [], so
// callers never see a nil slice round-trip.
type StringSlice []string

// Scan implements sql.Scanner
func (s *StringSlice) Scan(src interface{}) error {
	if s == nil {
		return fmt.Errorf("dbtypes: Scan on nil *StringSlice")
	}
	b, err := jsonbBytes(src)
	if err != nil {
		return err
	}
	if b == nil {
		*s = []string{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*s = out
	return nil
}

// Value implements driver.Valuer
func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// JSONMap carries source-specific pass-through fields (photo references,
// opening hours, external place ids) through a jsonb column. NULL scans as
// an empty map.
type JSONMap map[string]any

// Scan implements sql.Scanner
func (m *JSONMap) Scan(src interface{}) error {
	if m == nil {
		return fmt.Errorf("dbtypes: Scan on nil *JSONMap")
	}
	b, err := jsonbBytes(src)
	if err != nil {
		return err
	}
	if b == nil {
		*m = JSONMap{}
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// Value implements driver.Valuer
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
