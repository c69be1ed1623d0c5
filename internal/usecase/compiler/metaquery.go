package compiler

import (
	"strings"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/fieldpath"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/predicate"
)

// metaTree merges the meta_key/meta_value shorthand into the meta query. The
// shorthand leaf goes first; the root relation of meta_query is kept.
func metaTree(a *query.Args, exclude []string) (predicate.MetaQuery, bool) {
	var root predicate.MetaQuery
	if a.MetaQuery != nil && !a.MetaQuery.IsEmpty() {
		root = predicate.AsGroup(a.MetaQuery.Clone())
	} else {
		root = predicate.MetaQuery{Relation: predicate.And}
	}
	if leaf, ok := legacyMetaLeaf(a); ok {
		root.Children = append([]predicate.MetaQuery{predicate.Leaf(leaf)}, root.Children...)
	}
	if len(exclude) > 0 {
		root = predicate.DropMetaKeys(root, exclude)
	}
	if root.IsEmpty() {
		return predicate.MetaQuery{}, false
	}
	return root, true
}

func legacyMetaLeaf(a *query.Args) (predicate.MetaLeaf, bool) {
	if a.MetaKey == "" {
		return predicate.MetaLeaf{}, false
	}
	leaf := predicate.MetaLeaf{Key: a.MetaKey, Compare: predicate.Compare(a.MetaCompare), Type: a.MetaType}
	switch {
	case a.MetaValue.IsSet() && a.MetaValue.String() != "":
		leaf.Value, leaf.HasValue = predicate.Values{a.MetaValue.String()}, true
	case a.MetaValueNum.IsSet() && a.MetaValueNum.String() != "":
		leaf.Value, leaf.HasValue = predicate.Values{a.MetaValueNum.Value()}, true
	}
	return leaf, true
}

// compileMeta compiles a metadata tree. The relation of the root comes from rel;
// nested groups use their own.
func compileMeta(root predicate.MetaQuery, rel predicate.Relation) dsl.Clause {
	if root.IsLeaf() {
		return metaBranch([]predicate.MetaQuery{root}, nil).clause(rel)
	}
	return metaBranch(root.Children, root.Negated).clause(rel)
}

func metaBranch(children, negated []predicate.MetaQuery) branch {
	var b branch
	for _, c := range children {
		var cl dsl.Clause
		if c.IsLeaf() {
			cl = metaLeafClause(*c.Leaf)
		} else {
			cl = compileMeta(c, c.Relation)
		}
		if cl != nil {
			b.filter = append(b.filter, cl)
		}
	}
	for _, n := range negated {
		if cl := compileMeta(n, n.Relation); cl != nil {
			b.mustNot = append(b.mustNot, cl)
		}
	}
	return b
}

// metaPath picks the indexed sub-field a comparison runs against.
func metaPath(key string, cmp predicate.Compare, typ string) (fieldpath.Path, error) {
	switch {
	case cmp == predicate.KeyExists || cmp == predicate.KeyMissing:
		return fieldpath.MetaRoot(key)
	case (cmp == predicate.Eq || cmp == predicate.NotEq) && typ == "":
		return fieldpath.Meta(key, fieldpath.Raw)
	case cmp == predicate.Like || cmp == predicate.NotLike:
		return fieldpath.Meta(key, fieldpath.Value)
	}
	if v, ok := predicate.VariantForType(typ); ok {
		return fieldpath.Meta(key, v)
	}
	if cmp.IsRange() {
		return fieldpath.Meta(key, fieldpath.Double)
	}
	return fieldpath.Meta(key, fieldpath.Raw)
}

var rangeOps = map[predicate.Compare]string{
	predicate.Gt:  "gt",
	predicate.Gte: "gte",
	predicate.Lt:  "lt",
	predicate.Lte: "lte",
}

// metaLeafClause compiles one leaf. Malformed leaves and value comparisons
// without a value compile to nil.
func metaLeafClause(l predicate.MetaLeaf) dsl.Clause {
	cmp := predicate.ParseCompare(string(l.Compare))
	path, err := metaPath(l.Key, cmp, l.Type)
	if err != nil {
		return nil
	}
	p := path.String()
	values := []any(l.Value)

	switch cmp {
	case predicate.KeyExists:
		return dsl.Exists(p)
	case predicate.KeyMissing:
		return dsl.Not(dsl.Exists(p))
	}
	if !l.HasValue {
		return nil
	}

	switch cmp {
	case predicate.Eq:
		return dsl.Terms(p, values)
	case predicate.InList:
		if l.Operator == predicate.And && len(values) > 1 {
			each := make([]dsl.Clause, 0, len(values))
			for _, v := range values {
				each = append(each, dsl.Terms(p, []any{v}))
			}
			return dsl.AllOf(each...)
		}
		return dsl.Terms(p, values)
	case predicate.NotEq, predicate.NotInList:
		return dsl.Not(dsl.Terms(p, values))
	case predicate.Gt, predicate.Gte, predicate.Lt, predicate.Lte:
		if len(values) == 0 {
			return nil
		}
		return dsl.Range(p, map[string]any{rangeOps[cmp]: values[0]})
	case predicate.Between:
		if len(values) < 2 {
			return nil
		}
		return dsl.Range(p, map[string]any{"gte": values[0], "lte": values[1]})
	case predicate.Like:
		return dsl.Match(p, likeText(values))
	case predicate.NotLike:
		return dsl.Not(dsl.Match(p, likeText(values)))
	default:
		return nil
	}
}

func likeText(values []any) string {
	return strings.Join(predicate.Strings(values), " ")
}
