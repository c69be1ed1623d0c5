package compiler

import (
	"strings"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/fieldpath"
)

var sortAliases = map[string]fieldpath.Path{
	query.RelevanceKey: fieldpath.Score,
	"date":             fieldpath.PostDate,
	"type":             fieldpath.PostType,
	"modified":         fieldpath.PostModified,
	"name":             fieldpath.PostName,
	"title":            fieldpath.PostTitleSortable,
}

// parseOrder maps "ASC" in any case to ascending and anything else to
// descending. Empty input yields def.
func parseOrder(s string, def dsl.Order) dsl.Order {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if strings.EqualFold(s, string(dsl.Asc)) {
		return dsl.Asc
	}
	return dsl.Desc
}

// compileSort resolves the requested ordering. random reports that a random
// ordering was requested, in which case no sort clauses are returned.
func (c *Compiler) compileSort(a *query.Args) (sorts []dsl.Clause, random bool) {
	order := parseOrder(a.Order, c.cfg.DefaultOrder)

	keys := a.OrderBy
	if len(keys) == 0 {
		if a.HasSearch() {
			return []dsl.Clause{dsl.SortBy(fieldpath.Score.String(), dsl.Desc)}, false
		}
		keys = query.ParseSort(c.cfg.DefaultSort)
	}

	sorts = []dsl.Clause{}
	for _, k := range keys {
		switch k.Key {
		case "":
			continue
		case query.RandomOrderKey, query.RandomOrderAlt:
			random = true
			continue
		}
		path, ok := sortPath(k.Key, a.MetaKey)
		if !ok {
			continue
		}
		sorts = append(sorts, dsl.SortBy(path.String(), parseOrder(k.Order, order)))
	}
	if random {
		return nil, true
	}
	return sorts, false
}

// sortPath maps a sort key to an index field. Unknown keys pass through as
// raw field names; meta_value keys need a meta key.
func sortPath(key, metaKey string) (fieldpath.Path, bool) {
	if p, ok := sortAliases[key]; ok {
		return p, true
	}
	switch key {
	case query.MetaValueKey:
		p, err := fieldpath.Meta(metaKey, fieldpath.Raw)
		return p, err == nil
	case query.MetaValueNumKey:
		p, err := fieldpath.Meta(metaKey, fieldpath.Long)
		return p, err == nil
	}
	return fieldpath.Path(key), true
}
