// Package predicate models the recursive taxonomy and metadata predicate trees.
package predicate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Relation joins the children of a group.
type Relation string

const (
	And Relation = "AND"
	Or  Relation = "OR"
)

// ParseRelation normalizes a relation. Anything but OR means AND.
func ParseRelation(s string) Relation {
	if strings.EqualFold(strings.TrimSpace(s), string(Or)) {
		return Or
	}
	return And
}

// Node is either a leaf predicate or a group of nodes.
// Negated children of a group are compiled into its must_not section.
type Node[L any] struct {
	Leaf     *L
	Relation Relation
	Children []Node[L]
	Negated  []Node[L]
}

// Leaf wraps a single predicate.
func Leaf[L any](l L) Node[L] {
	return Node[L]{Leaf: &l}
}

// Group builds a group node.
func Group[L any](rel Relation, children ...Node[L]) Node[L] {
	return Node[L]{Relation: ParseRelation(string(rel)), Children: children}
}

// IsLeaf reports whether n holds a single predicate.
func (n Node[L]) IsLeaf() bool { return n.Leaf != nil }

// IsEmpty reports whether n is a group without children or negated children.
func (n Node[L]) IsEmpty() bool {
	return n.Leaf == nil && len(n.Children) == 0 && len(n.Negated) == 0
}

// AsGroup returns n unchanged when it is a group, or an AND group holding n.
func AsGroup[L any](n Node[L]) Node[L] {
	if n.Leaf == nil {
		if n.Relation == "" {
			n.Relation = And
		}
		return n
	}
	return Group(And, n)
}

// Clone returns a deep copy of the tree structure. Leaves are copied by value.
func (n Node[L]) Clone() Node[L] {
	out := Node[L]{Relation: n.Relation}
	if n.Leaf != nil {
		l := *n.Leaf
		out.Leaf = &l
	}
	if n.Children != nil {
		out.Children = make([]Node[L], len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	if n.Negated != nil {
		out.Negated = make([]Node[L], len(n.Negated))
		for i, c := range n.Negated {
			out.Negated[i] = c.Clone()
		}
	}
	return out
}

type groupJSON[L any] struct {
	Relation Relation  `json:"relation,omitempty"`
	Queries  []Node[L] `json:"queries,omitempty"`
	Negated  []Node[L] `json:"negated,omitempty"`
}

// MarshalJSON writes leaves as their own object and groups as
// {"relation", "queries", "negated"}.
func (n Node[L]) MarshalJSON() ([]byte, error) {
	if n.Leaf != nil {
		return json.Marshal(n.Leaf)
	}
	return json.Marshal(groupJSON[L]{Relation: n.Relation, Queries: n.Children, Negated: n.Negated})
}

// UnmarshalJSON accepts:
//   - an array, read as an AND group;
//   - an object with "queries" or "negated", read as a group;
//   - an object whose keys are "relation" plus list indexes ("0", "1", ...);
//   - any other object, read as a leaf.
func (n *Node[L]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = Node[L]{}
		return nil
	}

	if data[0] == '[' {
		var children []Node[L]
		if err := json.Unmarshal(data, &children); err != nil {
			return fmt.Errorf("predicate group: %w", err)
		}
		*n = Node[L]{Relation: And, Children: children}
		return nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("predicate: %w", err)
	}

	if _, ok := probe["queries"]; ok {
		return n.decodeGroup(data)
	}
	if _, ok := probe["negated"]; ok {
		return n.decodeGroup(data)
	}
	if isIndexedGroup(probe) {
		return n.decodeIndexed(probe)
	}

	var leaf L
	if err := json.Unmarshal(data, &leaf); err != nil {
		return fmt.Errorf("predicate leaf: %w", err)
	}
	*n = Node[L]{Leaf: &leaf}
	return nil
}

func (n *Node[L]) decodeGroup(data []byte) error {
	var g struct {
		Relation string    `json:"relation"`
		Queries  []Node[L] `json:"queries"`
		Negated  []Node[L] `json:"negated"`
	}
	if err := json.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("predicate group: %w", err)
	}
	*n = Node[L]{Relation: ParseRelation(g.Relation), Children: g.Queries, Negated: g.Negated}
	return nil
}

func isIndexedGroup(probe map[string]json.RawMessage) bool {
	indexed := 0
	for k := range probe {
		if k == "relation" {
			continue
		}
		if _, err := strconv.Atoi(k); err != nil {
			return false
		}
		indexed++
	}
	_, hasRelation := probe["relation"]
	return indexed > 0 || hasRelation
}

func (n *Node[L]) decodeIndexed(probe map[string]json.RawMessage) error {
	type entry struct {
		idx int
		raw json.RawMessage
	}
	var entries []entry
	var relation string
	for k, raw := range probe {
		if k == "relation" {
			if err := json.Unmarshal(raw, &relation); err != nil {
				return fmt.Errorf("predicate relation: %w", err)
			}
			continue
		}
		idx, _ := strconv.Atoi(k)
		entries = append(entries, entry{idx: idx, raw: raw})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })

	children := make([]Node[L], 0, len(entries))
	for _, e := range entries {
		var child Node[L]
		if err := json.Unmarshal(e.raw, &child); err != nil {
			return err
		}
		children = append(children, child)
	}
	*n = Node[L]{Relation: ParseRelation(relation), Children: children}
	return nil
}
