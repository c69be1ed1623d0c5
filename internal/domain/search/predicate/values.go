package predicate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Values is a loosely typed value list. A JSON scalar decodes as a
// one-element list.
type Values []any

// UnmarshalJSON accepts a scalar, an array or null.
func (v *Values) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var list []any
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("values: %w", err)
		}
		*v = list
		return nil
	}
	var one any
	if err := json.Unmarshal(data, &one); err != nil {
		return fmt.Errorf("values: %w", err)
	}
	*v = Values{one}
	return nil
}

// Compact drops falsy entries: nil, false, "", "0" and numeric zero.
// The result is never nil.
func Compact(values []any) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		if !IsFalsy(v) {
			out = append(out, v)
		}
	}
	return out
}

// IsFalsy reports whether v counts as an empty input value.
func IsFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case bool:
		return !t
	case string:
		return t == "" || t == "0"
	case float64:
		return t == 0
	case float32:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case json.Number:
		return t.String() == "0"
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

// Strings renders every value with fmt.Sprint. Whole floats print without a fraction.
func Strings(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, String(v))
	}
	return out
}

// String renders a single value.
func String(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprint(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

// Slugify turns a term name into its URL slug: accents folded, lower case,
// spaces and dots turned into single hyphens, anything else outside
// [a-z0-9_-] dropped.
func Slugify(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(strings.TrimSpace(folded))

	var b strings.Builder
	pendingHyphen := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '-', r == '.', unicode.IsSpace(r):
			pendingHyphen = true
		}
	}
	return b.String()
}
