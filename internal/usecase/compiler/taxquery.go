package compiler

import (
	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/fieldpath"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/predicate"
)

// branch collects the positive and negated clauses of one group.
type branch struct {
	filter  []dsl.Clause
	mustNot []dsl.Clause
}

// clause renders the group under rel. An empty group renders as nil.
func (b branch) clause(rel predicate.Relation) dsl.Clause {
	if len(b.filter) == 0 && len(b.mustNot) == 0 {
		return nil
	}
	body := map[string]any{}
	if len(b.filter) > 0 {
		body[relationKey(rel)] = b.filter
	}
	if len(b.mustNot) > 0 {
		body["must_not"] = b.mustNot
	}
	return dsl.Clause{"bool": body}
}

func relationKey(rel predicate.Relation) string {
	if rel == predicate.Or {
		return "should"
	}
	return "must"
}

// compileTax compiles a taxonomy tree. The relation of the root comes from rel;
// nested groups use their own.
func compileTax(root predicate.TaxQuery, rel predicate.Relation) dsl.Clause {
	if root.IsLeaf() {
		return taxBranch([]predicate.TaxQuery{root}, nil).clause(rel)
	}
	return taxBranch(root.Children, root.Negated).clause(rel)
}

func taxBranch(children, negated []predicate.TaxQuery) branch {
	var b branch
	for _, c := range children {
		if c.IsLeaf() {
			b.addTaxLeaf(*c.Leaf)
			continue
		}
		if cl := compileTax(c, c.Relation); cl != nil {
			b.filter = append(b.filter, cl)
		}
	}
	for _, n := range negated {
		if cl := compileTax(n, n.Relation); cl != nil {
			b.mustNot = append(b.mustNot, cl)
		}
	}
	return b
}

// addTaxLeaf compiles one leaf. Malformed leaves contribute nothing.
func (b *branch) addTaxLeaf(l predicate.TaxLeaf) {
	field, err := fieldpath.ParseTermField(l.Field)
	if err != nil {
		return
	}
	path, err := fieldpath.Taxonomy(l.Taxonomy, field)
	if err != nil {
		return
	}
	terms := []any(l.Terms)
	if field == fieldpath.Slug {
		terms = slugs(terms)
	}
	terms = predicate.Compact(terms)
	p := path.String()

	switch predicate.ParseOperator(string(l.Operator)) {
	case predicate.In:
		b.filter = append(b.filter, dsl.Terms(p, terms))
	case predicate.NotIn:
		b.mustNot = append(b.mustNot, dsl.Terms(p, terms))
	case predicate.AllTerms:
		if len(terms) == 0 {
			b.filter = append(b.filter, dsl.Terms(p, terms))
			return
		}
		each := make([]dsl.Clause, 0, len(terms))
		for _, t := range terms {
			each = append(each, dsl.Terms(p, []any{t}))
		}
		b.filter = append(b.filter, dsl.AllOf(each...))
	case predicate.Exists:
		b.filter = append(b.filter, dsl.AllOf(dsl.Exists(p)))
	case predicate.NotExists:
		b.filter = append(b.filter, dsl.Not(dsl.Exists(p)))
	}
}

func slugs(terms []any) []any {
	out := make([]any, 0, len(terms))
	for _, t := range terms {
		out = append(out, predicate.Slugify(predicate.String(t)))
	}
	return out
}

// taxShorthands turns the category and tag shortcuts into taxonomy leaves.
func taxShorthands(a *query.Args) []predicate.TaxQuery {
	var out []predicate.TaxQuery
	add := func(tax, field string, op predicate.Operator, values []any) {
		if len(values) == 0 {
			return
		}
		out = append(out, predicate.Leaf(predicate.TaxLeaf{
			Taxonomy: tax, Field: field, Operator: op, Terms: values,
		}))
	}
	add("category", string(fieldpath.TermID), predicate.In, a.CategoryIn.Any())
	add("category", string(fieldpath.TermID), predicate.AllTerms, a.CategoryAnd.Any())
	add("post_tag", string(fieldpath.TermID), predicate.In, a.TagIn.Any())
	add("post_tag", string(fieldpath.TermID), predicate.AllTerms, a.TagAnd.Any())
	add("post_tag", string(fieldpath.Slug), predicate.In, stringsToAny(a.TagSlugIn))
	add("post_tag", string(fieldpath.Slug), predicate.AllTerms, stringsToAny(a.TagSlugAnd))
	return out
}

// taxTree merges the explicit tax query with the shorthand leaves. The
// shorthands always join with AND, so a non-AND root is nested.
func taxTree(a *query.Args) (predicate.TaxQuery, bool) {
	extra := taxShorthands(a)
	if a.TaxQuery == nil || a.TaxQuery.IsEmpty() {
		if len(extra) == 0 {
			return predicate.TaxQuery{}, false
		}
		return predicate.Group(predicate.And, extra...), true
	}
	root := predicate.AsGroup(a.TaxQuery.Clone())
	if len(extra) == 0 {
		return root, true
	}
	if root.Relation == predicate.Or {
		return predicate.Group(predicate.And, append([]predicate.TaxQuery{root}, extra...)...), true
	}
	root.Children = append(root.Children, extra...)
	return root, true
}

func stringsToAny(s []string) []any {
	if len(s) == 0 {
		return nil
	}
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
