package quantity

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Raw holds an untyped numeric form value. It decodes from JSON strings,
// numbers or null so request bodies can be normalised leniently.
type Raw string

// UnmarshalJSON implements json.Unmarshaler.
func (r *Raw) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Raw(s)
		return nil
	}
	*r = Raw(data)
	return nil
}

// IsEmpty reports a blank value.
func (r Raw) IsEmpty() bool {
	return strings.TrimSpace(string(r)) == ""
}
