package predicate

import "strings"

// Operator is a taxonomy leaf operator.
type Operator string

const (
	In        Operator = "IN"
	NotIn     Operator = "NOT IN"
	AllTerms  Operator = "AND"
	Exists    Operator = "EXISTS"
	NotExists Operator = "NOT EXISTS"
)

// ParseOperator normalizes case and whitespace. Empty input means IN.
// Unknown operators are returned as is.
func ParseOperator(s string) Operator {
	op := Operator(strings.ToUpper(strings.Join(strings.Fields(s), " ")))
	if op == "" {
		return In
	}
	return op
}

// TaxLeaf restricts results by terms of one taxonomy.
type TaxLeaf struct {
	Taxonomy string   `json:"taxonomy"`
	Field    string   `json:"field,omitempty"`
	Operator Operator `json:"operator,omitempty"`
	Terms    Values   `json:"terms,omitempty"`
}

// TaxQuery is a taxonomy predicate tree.
type TaxQuery = Node[TaxLeaf]
