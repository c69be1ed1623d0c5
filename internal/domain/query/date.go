package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// DateBound is an after/before boundary: free text ("2020-01-31",
// "2020-01-31 10:00:00") or broken-down parts.
type DateBound struct {
	Text   string `json:"-"`
	Year   int    `json:"year,omitempty"`
	Month  int    `json:"month,omitempty"`
	Day    int    `json:"day,omitempty"`
	Hour   int    `json:"hour,omitempty"`
	Minute int    `json:"minute,omitempty"`
	Second int    `json:"second,omitempty"`
}

// UnmarshalJSON accepts a string or an object of parts.
func (b *DateBound) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		*b = DateBound{}
		return json.Unmarshal(data, &b.Text)
	}
	type plain DateBound
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("date bound: %w", err)
	}
	*b = DateBound(p)
	return nil
}

// MarshalJSON writes free text back as a string.
func (b DateBound) MarshalJSON() ([]byte, error) {
	if b.Text != "" {
		return json.Marshal(b.Text)
	}
	type plain DateBound
	return json.Marshal(plain(b))
}

// DateClause is one entry of a date query.
type DateClause struct {
	Column    string     `json:"column,omitempty"`
	After     *DateBound `json:"after,omitempty"`
	Before    *DateBound `json:"before,omitempty"`
	Inclusive bool       `json:"inclusive,omitempty"`
	Year      int        `json:"year,omitempty"`
	Month     int        `json:"month,omitempty"`
	Week      int        `json:"week,omitempty"`
	Day       int        `json:"day,omitempty"`
	DayOfWeek int        `json:"dayofweek,omitempty"`
	DayOfYear int        `json:"dayofyear,omitempty"`
	Hour      int        `json:"hour,omitempty"`
	Minute    int        `json:"minute,omitempty"`
	Second    int        `json:"second,omitempty"`
}

// DateQuery is a list of date clauses joined by Relation.
type DateQuery struct {
	Relation string       `json:"relation,omitempty"`
	Column   string       `json:"column,omitempty"`
	Clauses  []DateClause `json:"clauses,omitempty"`
}

// UnmarshalJSON accepts a list of clauses, {"relation","column","clauses"},
// an object of numbered clauses with an optional relation, or a single clause.
func (q *DateQuery) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*q = DateQuery{}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &q.Clauses)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("date_query: %w", err)
	}
	if raw, ok := obj["relation"]; ok {
		if err := json.Unmarshal(raw, &q.Relation); err != nil {
			return fmt.Errorf("date_query.relation: %w", err)
		}
	}
	if raw, ok := obj["column"]; ok {
		if err := json.Unmarshal(raw, &q.Column); err != nil {
			return fmt.Errorf("date_query.column: %w", err)
		}
	}
	if raw, ok := obj["clauses"]; ok {
		return json.Unmarshal(raw, &q.Clauses)
	}

	var idx []int
	for k := range obj {
		if n, err := strconv.Atoi(k); err == nil {
			idx = append(idx, n)
		}
	}
	if len(idx) == 0 {
		var c DateClause
		if err := json.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("date_query: %w", err)
		}
		q.Clauses = []DateClause{c}
		return nil
	}
	sort.Ints(idx)
	for _, n := range idx {
		var c DateClause
		if err := json.Unmarshal(obj[strconv.Itoa(n)], &c); err != nil {
			return fmt.Errorf("date_query[%d]: %w", n, err)
		}
		q.Clauses = append(q.Clauses, c)
	}
	return nil
}
