package elasticpress

// MatchType decides how selections on different facet fields combine.
type MatchType string

// Match type constants.
const (
	MatchAll MatchType = "all"
	MatchAny MatchType = "any"
)

// Selection maps a meta field to the values picked for it.
type Selection map[string][]string

// FacetBucket is one aggregated value of a facet field.
type FacetBucket struct {
	Key   string
	Count int64
}

// SearchResult is the outcome of a search.
type SearchResult struct {
	Total int64
	IDs   []string
	// Facets holds the buckets of each facet field, keyed by field name.
	Facets map[string][]FacetBucket
}

// FacetDefinition describes one facet field.
type FacetDefinition struct {
	Field          string
	Label          string
	Path           string
	BucketSize     int
	MaxValueLength int
}

// BulkItem is one document of a bulk index call.
type BulkItem struct {
	ID     int64
	Source map[string]any
}

// BulkResult is the outcome of one bulk item. Err is nil on success.
type BulkResult struct {
	ID  int64
	Err error
}
