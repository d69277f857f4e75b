package datastore

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// RawJSON holds a JSON document stored verbatim in a jsonb column
type RawJSON json.RawMessage

// Value - implement driver.Valuer interface for conversion to and from sql
// NOTE pq sends []byte as bytea, so the document goes over the wire as text
func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan - implement driver.Scanner interface for conversion to and from sql
func (j *RawJSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = RawJSON(v)
	default:
		return errors.New("failed to scan RawJSON, not byte slice or string")
	}
	return nil
}

// MarshalJSON emits the stored document as is
func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON keeps a copy of the document
func (j *RawJSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}
