package search

import (
	"context"
	"encoding/json"

	"github.com/alaa-alshamy/ElasticPress/internal/db"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/usecase/facet"
)

// Compiler builds search documents from content queries.
type Compiler interface {
	Compile(ctx context.Context, a *query.Args) (dsl.Document, error)
}

// Facets prepares facetable queries and decodes their buckets.
type Facets interface {
	Prepare(ctx context.Context, args *query.Args, sel facet.Selection) facet.Prepared
	Buckets(aggs map[string]json.RawMessage) (map[string][]facet.Bucket, error)
}

// Backend runs compiled documents.
type Backend interface {
	Search(ctx context.Context, index string, doc dsl.Document) (*db.SearchResult, error)
}
