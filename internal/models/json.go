package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is an uninterpreted structured payload stored as a JSON column.
// The core passes these through unexamined; domain-specific extraction
// belongs to the callers on either side.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("models: marshal json map: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("models: scan json map: unsupported type %T", value)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("models: scan json map: %w", err)
	}
	return nil
}
