package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// DefaultAggregationName names aggregations that arrive without one.
const DefaultAggregationName = "aggregation_name"

// Aggregation is a named set of sub-aggregations. With UseFilter the
// aggregations are scoped to the active filter tree.
type Aggregation struct {
	Name      string         `json:"name,omitempty"`
	UseFilter bool           `json:"use-filter,omitempty"`
	Aggs      map[string]any `json:"aggs,omitempty"`
}

// AggList accepts a single aggregation object or a list.
type AggList []Aggregation

// UnmarshalJSON decodes one or many aggregations.
func (l *AggList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var list []Aggregation
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("aggs: %w", err)
		}
		*l = list
		return nil
	}
	var one Aggregation
	if err := json.Unmarshal(data, &one); err != nil {
		return fmt.Errorf("aggs: %w", err)
	}
	*l = AggList{one}
	return nil
}

func (l AggList) clone() AggList {
	if l == nil {
		return nil
	}
	out := make(AggList, len(l))
	for i, a := range l {
		out[i] = Aggregation{Name: a.Name, UseFilter: a.UseFilter, Aggs: maps.Clone(a.Aggs)}
	}
	return out
}
