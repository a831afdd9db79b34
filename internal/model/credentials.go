package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Credentials holds the provider specific secrets of a cloud connection,
// stored as a JSON object.
type Credentials map[string]string

// Value implements the driver.Valuer interface.
func (c Credentials) Value() (driver.Value, error) {
	if len(c) == 0 {
		return "{}", nil
	}

	b, err := json.Marshal(map[string]string(c))
	if err != nil {
		return nil, fmt.Errorf("failed to encode credentials, %w", err)
	}

	return string(b), nil
}

// Scan implements the sql.Scanner interface.
func (c *Credentials) Scan(value any) error {
	if value == nil {
		*c = Credentials{}
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("failed to scan Credentials, %v", value)
	}

	m := map[string]string{}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("failed to decode credentials, %w", err)
		}
	}

	*c = m
	return nil
}
