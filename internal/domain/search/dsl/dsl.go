// Package dsl holds the building blocks of the search-engine query document.
package dsl

// Clause is a single node of the engine query language.
type Clause map[string]any

// Term matches documents whose field equals value exactly.
func Term(field string, value any) Clause {
	return Clause{"term": map[string]any{field: value}}
}

// Terms matches documents whose field equals any of values.
// An empty value list is kept as is and matches nothing.
func Terms(field string, values []any) Clause {
	if values == nil {
		values = []any{}
	}
	return Clause{"terms": map[string]any{field: values}}
}

// Exists matches documents that have any value for field.
func Exists(field string) Clause {
	return Clause{"exists": map[string]any{"field": field}}
}

// Regexp matches documents whose field matches pattern.
func Regexp(field, pattern string) Clause {
	return Clause{"regexp": map[string]any{field: pattern}}
}

// Range matches documents whose field lies within bounds (gt, gte, lt, lte).
func Range(field string, bounds map[string]any) Clause {
	return Clause{"range": map[string]any{field: bounds}}
}

// Match runs an analyzed match on field.
func Match(field string, value any) Clause {
	return Clause{"match": map[string]any{field: value}}
}

// MatchAll matches every document.
func MatchAll() Clause {
	return Clause{"match_all": map[string]any{"boost": 1.0}}
}

// MultiMatch runs query over fields with the given options (type, boost, operator, fuzziness).
func MultiMatch(query string, fields []string, opts map[string]any) Clause {
	body := map[string]any{"query": query, "fields": fields}
	for k, v := range opts {
		body[k] = v
	}
	return Clause{"multi_match": body}
}

// Not wraps clauses in a bool must_not.
func Not(clauses ...Clause) Clause {
	return Clause{"bool": map[string]any{"must_not": clauses}}
}

// AllOf wraps clauses in a bool must, keeping an empty list as is.
func AllOf(clauses ...Clause) Clause {
	if clauses == nil {
		clauses = []Clause{}
	}
	return Clause{"bool": map[string]any{"must": clauses}}
}

// RandomScore wraps query in a function_score with a random_score function.
func RandomScore(query Clause) Clause {
	if query == nil {
		query = MatchAll()
	}
	return Clause{"function_score": map[string]any{
		"query":        query,
		"random_score": map[string]any{},
	}}
}

// WeightedScore wraps query in a function_score that multiplies the score of
// documents matching filter by weight.
func WeightedScore(query, filter Clause, weight float64) Clause {
	if query == nil {
		query = MatchAll()
	}
	return Clause{"function_score": map[string]any{
		"query": query,
		"functions": []any{
			map[string]any{"filter": filter, "weight": weight},
		},
	}}
}

// Body returns the inner object of a single-key clause, or nil when the clause
// is not of the given kind.
func (c Clause) Body(kind string) map[string]any {
	v, ok := c[kind]
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}
