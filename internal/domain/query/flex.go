package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// StringList accepts a string, a comma separated string or an array of strings.
type StringList []string

// UnmarshalJSON splits strings on commas and trims each entry. Empty entries are dropped.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	var raw []any
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("string list: %w", err)
		}
	} else {
		var one any
		if err := json.Unmarshal(data, &one); err != nil {
			return fmt.Errorf("string list: %w", err)
		}
		raw = []any{one}
	}
	out := StringList{}
	for _, v := range raw {
		for _, part := range strings.Split(scalarString(v), ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	*l = out
	return nil
}

// Contains reports whether s is in the list.
func (l StringList) Contains(s string) bool {
	for _, v := range l {
		if v == s {
			return true
		}
	}
	return false
}

// IDList accepts numbers, numeric strings, comma separated strings or arrays
// of either. Zero and unparsable entries are dropped.
type IDList []int64

// UnmarshalJSON parses every entry as an integer id.
func (l *IDList) UnmarshalJSON(data []byte) error {
	var s StringList
	if err := s.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("id list: %w", err)
	}
	out := IDList{}
	for _, v := range s {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id == 0 {
			continue
		}
		out = append(out, id)
	}
	*l = out
	return nil
}

// Any converts the ids for use in a terms clause.
func (l IDList) Any() []any {
	out := make([]any, len(l))
	for i, id := range l {
		out[i] = id
	}
	return out
}

// Scalar is a loosely typed single value.
type Scalar struct {
	raw string
	set bool
}

// NewScalar wraps s.
func NewScalar(s string) *Scalar {
	return &Scalar{raw: s, set: true}
}

// UnmarshalJSON accepts a string, number or boolean.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = Scalar{}
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("scalar: %w", err)
	}
	*s = Scalar{raw: scalarString(v), set: true}
	return nil
}

// MarshalJSON writes the value back as a string.
func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.raw)
}

// String returns the value as text.
func (s *Scalar) String() string {
	if s == nil {
		return ""
	}
	return s.raw
}

// IsSet reports whether a value was supplied.
func (s *Scalar) IsSet() bool { return s != nil && s.set }

// Value returns an int64 for integral input and the string otherwise.
func (s *Scalar) Value() any {
	if n, err := strconv.ParseInt(s.String(), 10, 64); err == nil {
		return n
	}
	return s.String()
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "1"
		}
		return ""
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
