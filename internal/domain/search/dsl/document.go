package dsl

import (
	"encoding/json"
	"maps"
	"slices"
)

// Bool is an additive boolean filter tree.
type Bool struct {
	Must    []Clause
	Should  []Clause
	MustNot []Clause
}

// IsEmpty reports whether the tree has no clauses.
func (b Bool) IsEmpty() bool {
	return len(b.Must) == 0 && len(b.Should) == 0 && len(b.MustNot) == 0
}

// Clause renders the tree as a bool clause. Empty sections are omitted.
// An empty tree renders as nil.
func (b Bool) Clause() Clause {
	if b.IsEmpty() {
		return nil
	}
	body := map[string]any{}
	if len(b.Must) > 0 {
		body["must"] = b.Must
	}
	if len(b.Should) > 0 {
		body["should"] = b.Should
	}
	if len(b.MustNot) > 0 {
		body["must_not"] = b.MustNot
	}
	return Clause{"bool": body}
}

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// SortBy builds one sort entry.
func SortBy(field string, order Order) Clause {
	return Clause{field: map[string]any{"order": string(order)}}
}

// Source limits the returned document fields.
type Source struct {
	Includes []string `json:"includes"`
}

// Document is a complete search request body.
type Document struct {
	From       int
	Size       int
	Sort       []Clause
	Query      Clause
	PostFilter Clause
	Aggs       map[string]any
	Source     *Source
}

type wireDocument struct {
	From       int            `json:"from"`
	Size       int            `json:"size"`
	Sort       []Clause       `json:"sort,omitempty"`
	Query      Clause         `json:"query,omitempty"`
	PostFilter Clause         `json:"post_filter,omitempty"`
	Aggs       map[string]any `json:"aggs,omitempty"`
	Source     *Source        `json:"_source,omitempty"`
}

// MarshalJSON renders the request body. Absent parts are omitted.
func (d Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireDocument(d))
}

// UnmarshalJSON reads a request body back, used by tools that post-process
// compiled documents.
func (d *Document) UnmarshalJSON(data []byte) error {
	var w wireDocument
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = Document(w)
	return nil
}

// Clone returns a copy whose top-level slices and maps can be changed without
// affecting d. Nested clauses are shared.
func (d Document) Clone() Document {
	out := d
	out.Sort = slices.Clone(d.Sort)
	if d.Aggs != nil {
		out.Aggs = maps.Clone(d.Aggs)
	}
	if d.Source != nil {
		src := Source{Includes: slices.Clone(d.Source.Includes)}
		out.Source = &src
	}
	return out
}
