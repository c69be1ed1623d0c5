package db

import (
	"context"
	"encoding/json"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
)

// SearchBackend executes compiled documents against a content index.
type SearchBackend interface {
	Pinger
	Searcher
	Close()
}

// Searcher provides read operations over a content index.
type Searcher interface {
	// Search runs a compiled document.
	Search(ctx context.Context, index string, doc dsl.Document) (*SearchResult, error)
	// DistinctValues returns up to size distinct values of field, most frequent first.
	DistinctValues(ctx context.Context, index, field string, size int) ([]string, error)
	// Mapping returns the raw mapping of index keyed by the concrete index name.
	Mapping(ctx context.Context, index string) (map[string]any, error)
}

// SearchResult holds matched documents and raw aggregation output.
type SearchResult struct {
	Total        int64
	Hits         []Hit
	Aggregations map[string]json.RawMessage
}

// Hit is a single matched document.
type Hit struct {
	ID     string
	Score  float64
	Source json.RawMessage
}

// IDs returns the ids of all hits in order.
func (r *SearchResult) IDs() []string {
	out := make([]string, len(r.Hits))
	for i, h := range r.Hits {
		out[i] = h.ID
	}
	return out
}

// Indexer writes documents into a content index.
type Indexer interface {
	IndexDocument(ctx context.Context, index, id string, source map[string]any) error
	DeleteDocument(ctx context.Context, index, id string) error
}
