package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONBody is a free-form document body persisted as JSON text.
type JSONBody map[string]any

// Value marshals the body into JSON for the documents table.
func (b JSONBody) Value() (driver.Value, error) {
	if b == nil {
		return "{}", nil
	}
	buf, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

// Scan decodes the stored JSON into the map.
func (b *JSONBody) Scan(value interface{}) error {
	if value == nil {
		*b = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("json body: unsupported scan type %T", value)
	}

	result := make(JSONBody)
	if err := json.Unmarshal(raw, &result); err != nil {
		return err
	}
	*b = result
	return nil
}
