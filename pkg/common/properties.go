package common

import (
	"encoding/json"
	"fmt"
)

// Properties is a string-keyed map of scalar or JSON values attached to a
// node or relation. Serialization happens explicitly at the store boundary;
// inside the engine the map is passed around as-is.
type Properties map[string]any

// MarshalJSONB serializes the map for a JSONB column. A nil map serializes
// as an empty object so the column never holds SQL NULL.
func (p Properties) MarshalJSONB() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal properties: %w", err)
	}
	return b, nil
}

// UnmarshalJSONB replaces the map contents from a JSONB column value.
func (p *Properties) UnmarshalJSONB(data []byte) error {
	if len(data) == 0 {
		*p = Properties{}
		return nil
	}
	m := make(map[string]any)
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("unmarshal properties: %w", err)
	}
	*p = m
	return nil
}

// GetString returns the string value for key, or "" when absent or not a
// string.
func (p Properties) GetString(key string) string {
	v, ok := p[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
