package compiler

import (
	"maps"
	"slices"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/fieldpath"
)

// numericSearchFields cannot take a fuzziness parameter.
var numericSearchFields = []string{"ID", fieldpath.PostID.String(), fieldpath.PostParent.String()}

// searchFields expands the requested fields: plain names first, then
// taxonomy names, meta values and the author login.
func (c *Compiler) searchFields(a *query.Args) []string {
	if a.SearchFields == nil || a.SearchFields.IsEmpty() {
		return slices.Clone(c.cfg.DefaultSearchFields)
	}
	sf := a.SearchFields
	var plain, expanded []string
	author := false
	for _, f := range sf.Fields {
		if f == query.AuthorNameField {
			author = true
			continue
		}
		plain = append(plain, f)
	}
	for _, t := range sf.Taxonomies {
		expanded = append(expanded, fieldpath.TaxonomyName(t).String())
	}
	for _, m := range sf.Meta {
		if p, err := fieldpath.Meta(m, fieldpath.Value); err == nil {
			expanded = append(expanded, p.String())
		}
	}
	if author {
		expanded = append(expanded, fieldpath.PostAuthorLogin.String())
	}
	return append(plain, expanded...)
}

// dropFuzziness removes fuzziness from the multi_match clauses of a bool
// should query when a numeric field is searched.
func dropFuzziness(q dsl.Clause, fields []string) dsl.Clause {
	if !slices.ContainsFunc(fields, func(f string) bool { return slices.Contains(numericSearchFields, f) }) {
		return q
	}
	body := q.Body("bool")
	if body == nil {
		return q
	}
	should, ok := body["should"].([]dsl.Clause)
	if !ok {
		return q
	}
	adjusted := make([]dsl.Clause, len(should))
	for i, cl := range should {
		mm := cl.Body("multi_match")
		if _, fuzzy := mm["fuzziness"]; !fuzzy {
			adjusted[i] = cl
			continue
		}
		mm = maps.Clone(mm)
		delete(mm, "fuzziness")
		adjusted[i] = dsl.Clause{"multi_match": mm}
	}
	newBody := maps.Clone(body)
	newBody["should"] = adjusted
	return dsl.Clause{"bool": newBody}
}
