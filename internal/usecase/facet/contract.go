package facet

import "context"

// FieldSource lists meta fields that UI blocks expose as facets.
type FieldSource interface {
	MetaFields(ctx context.Context) ([]string, error)
}

// ValueSource reads distinct indexed values of a field.
type ValueSource interface {
	DistinctValues(ctx context.Context, index, field string, size int) ([]string, error)
}

// Cache holds distinct values per facet field.
type Cache interface {
	Get(ctx context.Context, field string) ([]string, bool)
	Set(ctx context.Context, field string, values []string) error
	Delete(ctx context.Context, fields ...string) error
	DeleteAll(ctx context.Context) error
}
