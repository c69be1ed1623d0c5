package predicate

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/fieldpath"
)

// Compare is a metadata leaf comparator.
type Compare string

const (
	Eq         Compare = "="
	NotEq      Compare = "!="
	Gt         Compare = ">"
	Gte        Compare = ">="
	Lt         Compare = "<"
	Lte        Compare = "<="
	Between    Compare = "BETWEEN"
	InList     Compare = "IN"
	NotInList  Compare = "NOT IN"
	KeyExists  Compare = "EXISTS"
	KeyMissing Compare = "NOT EXISTS"
	Like       Compare = "LIKE"
	NotLike    Compare = "NOT LIKE"
)

// ParseCompare normalizes case and whitespace. Empty input means "=".
func ParseCompare(s string) Compare {
	c := Compare(strings.ToUpper(strings.Join(strings.Fields(s), " ")))
	if c == "" {
		return Eq
	}
	return c
}

// IsRange reports whether c compares ordered values.
func (c Compare) IsRange() bool {
	switch c {
	case Gt, Gte, Lt, Lte, Between:
		return true
	}
	return false
}

var typeVariants = map[string]fieldpath.Variant{
	"NUMERIC":  fieldpath.Long,
	"SIGNED":   fieldpath.Long,
	"UNSIGNED": fieldpath.Long,
	"DECIMAL":  fieldpath.Double,
	"BINARY":   fieldpath.Raw,
	"CHAR":     fieldpath.Raw,
	"DATE":     fieldpath.Date,
	"DATETIME": fieldpath.Datetime,
	"TIME":     fieldpath.Time,
}

// VariantForType maps a metadata type hint to the indexed sub-field.
func VariantForType(t string) (fieldpath.Variant, bool) {
	v, ok := typeVariants[strings.ToUpper(strings.TrimSpace(t))]
	return v, ok
}

// MetaLeaf restricts results by one metadata key.
type MetaLeaf struct {
	Key      string   `json:"key"`
	Value    Values   `json:"value,omitempty"`
	Compare  Compare  `json:"compare,omitempty"`
	Type     string   `json:"type,omitempty"`
	Operator Relation `json:"operator,omitempty"`

	// HasValue is true when a value was supplied, even an empty one.
	HasValue bool `json:"-"`
}

// UnmarshalJSON records whether "value" was present.
func (l *MetaLeaf) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key      string          `json:"key"`
		Value    json.RawMessage `json:"value"`
		Compare  string          `json:"compare"`
		Type     string          `json:"type"`
		Operator string          `json:"operator"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = MetaLeaf{
		Key:     raw.Key,
		Compare: Compare(raw.Compare),
		Type:    raw.Type,
	}
	if raw.Operator != "" {
		l.Operator = ParseRelation(raw.Operator)
	}
	v := bytes.TrimSpace(raw.Value)
	if len(v) > 0 && !bytes.Equal(v, []byte("null")) {
		l.HasValue = true
		if err := json.Unmarshal(v, &l.Value); err != nil {
			return err
		}
	}
	return nil
}

// MetaQuery is a metadata predicate tree.
type MetaQuery = Node[MetaLeaf]

// DropMetaKeys returns a copy of q without the top-level leaves whose key is
// listed. Nested groups are kept intact.
func DropMetaKeys(q MetaQuery, keys []string) MetaQuery {
	if len(keys) == 0 {
		return q.Clone()
	}
	drop := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		drop[k] = struct{}{}
	}
	if q.IsLeaf() {
		if _, ok := drop[q.Leaf.Key]; ok {
			return MetaQuery{Relation: And}
		}
		return q.Clone()
	}
	out := MetaQuery{Relation: q.Relation}
	for _, c := range q.Children {
		if c.IsLeaf() {
			if _, ok := drop[c.Leaf.Key]; ok {
				continue
			}
		}
		out.Children = append(out.Children, c.Clone())
	}
	for _, c := range q.Negated {
		out.Negated = append(out.Negated, c.Clone())
	}
	return out
}
