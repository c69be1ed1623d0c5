package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SortKey is one requested ordering. An empty Order falls back to Args.Order.
type SortKey struct {
	Key   string `json:"key"`
	Order string `json:"order,omitempty"`
}

// Sort is an ordered list of sort keys.
type Sort []SortKey

// UnmarshalJSON accepts:
//   - "date title" (space separated keys);
//   - ["date", "title"] or [{"key":"date","order":"asc"}];
//   - {"date":"asc","title":"desc"}, keeping key order.
func (s *Sort) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	switch data[0] {
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("orderby: %w", err)
		}
		*s = ParseSort(str)
		return nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("orderby: %w", err)
		}
		out := Sort{}
		for _, item := range items {
			keys, err := decodeSortItem(item)
			if err != nil {
				return err
			}
			out = append(out, keys...)
		}
		*s = out
		return nil
	case '{':
		keys, err := decodeOrderedObject(data)
		if err != nil {
			return err
		}
		*s = keys
		return nil
	default:
		return fmt.Errorf("orderby: unsupported value %s", data)
	}
}

// ParseSort splits a space separated key list.
func ParseSort(s string) Sort {
	out := Sort{}
	for _, k := range strings.Fields(s) {
		out = append(out, SortKey{Key: k})
	}
	return out
}

// Keys returns the key names in order.
func (s Sort) Keys() []string {
	out := make([]string, len(s))
	for i, k := range s {
		out[i] = k.Key
	}
	return out
}

func decodeSortItem(item json.RawMessage) (Sort, error) {
	item = bytes.TrimSpace(item)
	if len(item) > 0 && item[0] == '"' {
		var str string
		if err := json.Unmarshal(item, &str); err != nil {
			return nil, fmt.Errorf("orderby item: %w", err)
		}
		return ParseSort(str), nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(item, &probe); err != nil {
		return nil, fmt.Errorf("orderby item: %w", err)
	}
	if _, ok := probe["key"]; ok {
		var k SortKey
		if err := json.Unmarshal(item, &k); err != nil {
			return nil, fmt.Errorf("orderby item: %w", err)
		}
		return Sort{k}, nil
	}
	return decodeOrderedObject(item)
}

// decodeOrderedObject reads {"key":"order",...} with a token stream so the
// caller's key order survives.
func decodeOrderedObject(data []byte) (Sort, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("orderby: %w", err)
	}
	out := Sort{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("orderby: %w", err)
		}
		key, _ := tok.(string)
		var order any
		if err := dec.Decode(&order); err != nil {
			return nil, fmt.Errorf("orderby %q: %w", key, err)
		}
		o, _ := order.(string)
		out = append(out, SortKey{Key: key, Order: o})
	}
	return out, nil
}
