package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// AuthorNameField is the search field that expands to the author login.
const AuthorNameField = "author_name"

// SearchFields lists the fields free text is matched against.
type SearchFields struct {
	Fields     []string `json:"fields,omitempty"`
	Taxonomies []string `json:"taxonomies,omitempty"`
	Meta       []string `json:"meta,omitempty"`
}

// IsEmpty reports whether no field was requested.
func (f SearchFields) IsEmpty() bool {
	return len(f.Fields) == 0 && len(f.Taxonomies) == 0 && len(f.Meta) == 0
}

// UnmarshalJSON accepts a list of field names, a list mixing names with
// {"taxonomies": [...]} / {"meta": [...]} objects, or an object with
// "fields", "taxonomies", "meta" and numbered plain field entries.
func (f *SearchFields) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = SearchFields{}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("search_fields: %w", err)
		}
		for _, item := range items {
			if err := f.addItem(item); err != nil {
				return err
			}
		}
		return nil
	}
	return f.addObject(data)
}

func (f *SearchFields) addItem(item json.RawMessage) error {
	item = bytes.TrimSpace(item)
	if len(item) > 0 && item[0] == '"' {
		var name string
		if err := json.Unmarshal(item, &name); err != nil {
			return fmt.Errorf("search_fields: %w", err)
		}
		f.Fields = append(f.Fields, name)
		return nil
	}
	return f.addObject(item)
}

func (f *SearchFields) addObject(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("search_fields: %w", err)
	}

	numbered := make([]int, 0, len(obj))
	for k := range obj {
		if n, err := strconv.Atoi(k); err == nil {
			numbered = append(numbered, n)
		}
	}
	slices.Sort(numbered)
	for _, n := range numbered {
		if err := f.addItem(obj[strconv.Itoa(n)]); err != nil {
			return err
		}
	}

	for key, dst := range map[string]*[]string{
		"fields":     &f.Fields,
		"taxonomies": &f.Taxonomies,
		"meta":       &f.Meta,
	} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var names StringList
		if err := names.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("search_fields.%s: %w", key, err)
		}
		*dst = append(*dst, names...)
	}
	return nil
}
