package compiler

import (
	"maps"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
)

// injectAggs adds each aggregation to doc. Aggregations without
// sub-aggregations are skipped; unnamed ones get the default name. Scoped
// aggregations are wrapped in a filter aggregation when a filter is in use.
// Later aggregations replace earlier ones with the same name.
func injectAggs(doc dsl.Document, aggs query.AggList, filter dsl.Clause) dsl.Document {
	for _, agg := range aggs {
		if len(agg.Aggs) == 0 {
			continue
		}
		name := agg.Name
		if name == "" {
			name = query.DefaultAggregationName
		}
		if doc.Aggs == nil {
			doc.Aggs = map[string]any{}
		}
		body := maps.Clone(agg.Aggs)
		if agg.UseFilter && filter != nil {
			doc.Aggs[name] = map[string]any{"filter": filter, "aggs": body}
			continue
		}
		doc.Aggs[name] = body
	}
	return doc
}
