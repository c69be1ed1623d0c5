package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// MimeType restricts attachments by MIME type. A single string matches as a
// prefix ("image" matches image/*); a list matches exact types, where bare
// top-level types are expanded against the known type list at compile time.
type MimeType struct {
	Types  []string
	Prefix string
}

// UnmarshalJSON accepts a string or a list of strings.
func (m *MimeType) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*m = MimeType{}
	if len(data) > 0 && data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("post_mime_type: %w", err)
		}
		m.Types = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("post_mime_type: %w", err)
	}
	m.Prefix = strings.TrimSpace(s)
	return nil
}

// MarshalJSON writes the value in the shape it was given.
func (m MimeType) MarshalJSON() ([]byte, error) {
	if m.Types != nil {
		return json.Marshal(m.Types)
	}
	return json.Marshal(m.Prefix)
}

// IsEmpty reports whether no type was requested.
func (m *MimeType) IsEmpty() bool {
	return m == nil || (len(m.Types) == 0 && m.Prefix == "")
}
