package facet

import (
	"fmt"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/fieldpath"
)

// MatchType decides how selections on different fields combine.
type MatchType string

const (
	// MatchAll requires every selected field to match.
	MatchAll MatchType = "all"
	// MatchAny requires at least one selected field to match.
	MatchAny MatchType = "any"
)

// Defaults.
const (
	DefaultAggregationName = "terms"
	DefaultFilterPrefix    = "ep_meta_filter_"
	DefaultFilterType      = "meta"
	DefaultBucketSize      = 10000
	DefaultMaxValueLength  = 100
	DefaultDistinctSize    = 100
	DefaultContentType     = "post"
)

// FieldOverride customizes one facet field. Zero fields keep the defaults.
type FieldOverride struct {
	Variant        fieldpath.Variant `yaml:"variant"`
	BucketSize     int               `yaml:"bucket_size"`
	MaxValueLength int               `yaml:"max_value_length"`
	Label          string            `yaml:"label"`
}

// Settings configures the engine.
type Settings struct {
	MatchType MatchType
	// AggregationName is the scoped aggregation that holds all facet sub-aggregations.
	AggregationName string
	// FilterPrefix precedes the field name in sub-aggregation names and URL parameters.
	FilterPrefix string
	FilterType   string
	BucketSize   int
	// MaxValueLength caps each distinct value, in characters.
	MaxValueLength int
	// DistinctSize is how many distinct values are fetched per field.
	DistinctSize int
	// ContentType is the indexable whose bulk runs invalidate the cache.
	ContentType string
	// Index is the content index distinct values are read from.
	Index string
	// Fields are facet fields configured in addition to those found in blocks.
	Fields    []string
	Overrides map[string]FieldOverride
}

func (s Settings) withDefaults() Settings {
	if s.MatchType == "" {
		s.MatchType = MatchAll
	}
	if s.AggregationName == "" {
		s.AggregationName = DefaultAggregationName
	}
	if s.FilterPrefix == "" {
		s.FilterPrefix = DefaultFilterPrefix
	}
	if s.FilterType == "" {
		s.FilterType = DefaultFilterType
	}
	if s.BucketSize <= 0 {
		s.BucketSize = DefaultBucketSize
	}
	if s.MaxValueLength <= 0 {
		s.MaxValueLength = DefaultMaxValueLength
	}
	if s.DistinctSize <= 0 {
		s.DistinctSize = DefaultDistinctSize
	}
	if s.ContentType == "" {
		s.ContentType = DefaultContentType
	}
	return s
}

// Validate checks values that have no sensible fallback.
func (s Settings) Validate() error {
	switch s.MatchType {
	case "", MatchAll, MatchAny:
	default:
		return fmt.Errorf("facets.match_type must be %q or %q, got %q", MatchAll, MatchAny, s.MatchType)
	}
	for field, o := range s.Overrides {
		if o.Variant == "" {
			continue
		}
		if _, err := fieldpath.ParseVariant(string(o.Variant)); err != nil {
			return fmt.Errorf("facets.overrides.%s: %w", field, err)
		}
		if o.Variant == fieldpath.Value {
			return fmt.Errorf("facets.overrides.%s: analyzed variant %q cannot be aggregated", field, o.Variant)
		}
	}
	return nil
}

func (s Settings) override(field string) FieldOverride {
	o := s.Overrides[field]
	if o.Variant == "" {
		o.Variant = fieldpath.Raw
	}
	if o.BucketSize <= 0 {
		o.BucketSize = s.BucketSize
	}
	if o.MaxValueLength <= 0 {
		o.MaxValueLength = s.MaxValueLength
	}
	if o.Label == "" {
		o.Label = field
	}
	return o
}
