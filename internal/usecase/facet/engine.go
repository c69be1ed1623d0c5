// Package facet implements meta-field faceted navigation: it registers the
// facet aggregations on a query, applies visitor selections and serves the
// cached distinct values of each field.
package facet

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/fieldpath"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/predicate"
)

// State is the stage a query has reached in Prepare.
type State int

const (
	// Idle is a query that Prepare has not touched.
	Idle State = iota
	// AggregationsRegistered means the facet aggregation was added.
	AggregationsRegistered
	// SelectionsApplied means selected values became meta query leaves.
	SelectionsApplied
	// FieldsExcluded means facet keys were dropped from the aggregation filter.
	FieldsExcluded
)

func (s State) String() string {
	switch s {
	case AggregationsRegistered:
		return "aggregations-registered"
	case SelectionsApplied:
		return "selections-applied"
	case FieldsExcluded:
		return "fields-excluded"
	}
	return "idle"
}

// Definition describes one facet as rendered to clients.
type Definition struct {
	Field          string `json:"field"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Label          string `json:"label"`
	Path           string `json:"path"`
	BucketSize     int    `json:"bucket_size"`
	MaxValueLength int    `json:"max_value_length"`
}

// Prepared is a query after Prepare.
type Prepared struct {
	Args  *query.Args
	State State
}

// Engine is safe for concurrent use.
type Engine struct {
	settings Settings
	fields   FieldSource
	values   ValueSource
	cache    Cache
	fills    singleflight.Group
	logger   *zap.Logger
}

// New creates an engine. fields may be nil when only configured fields are used.
func New(settings Settings, fields FieldSource, values ValueSource, cache Cache, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		settings: settings.withDefaults(),
		fields:   fields,
		values:   values,
		cache:    cache,
		logger:   logger,
	}
}

// Settings returns the effective settings.
func (e *Engine) Settings() Settings { return e.settings }

// Fields returns the facet fields: configured ones first, then those found
// in blocks, without duplicates. A failing block source is logged and
// skipped.
func (e *Engine) Fields(ctx context.Context) []string {
	out := make([]string, 0, len(e.settings.Fields))
	seen := map[string]struct{}{}
	add := func(f string) {
		if f == "" {
			return
		}
		if _, dup := seen[f]; dup {
			return
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	for _, f := range e.settings.Fields {
		add(f)
	}
	if e.fields != nil {
		found, err := e.fields.MetaFields(ctx)
		if err != nil {
			e.logger.Warn("Failed to read facet blocks", zap.Error(err))
		}
		for _, f := range found {
			add(f)
		}
	}
	return out
}

// Definitions describes every facet field.
func (e *Engine) Definitions(ctx context.Context) []Definition {
	fields := e.Fields(ctx)
	defs := make([]Definition, 0, len(fields))
	for _, f := range fields {
		d, err := e.definition(f)
		if err != nil {
			e.logger.Warn("Skipping facet field", zap.String("field", f), zap.Error(err))
			continue
		}
		defs = append(defs, d)
	}
	return defs
}

func (e *Engine) definition(field string) (Definition, error) {
	o := e.settings.override(field)
	path, err := fieldpath.Meta(field, o.Variant)
	if err != nil {
		return Definition{}, err
	}
	return Definition{
		Field:          field,
		Name:           e.settings.FilterPrefix + field,
		Type:           e.settings.FilterType,
		Label:          o.Label,
		Path:           path.String(),
		BucketSize:     o.BucketSize,
		MaxValueLength: o.MaxValueLength,
	}, nil
}

// RegisterAggregations returns a copy of args carrying one terms
// sub-aggregation per facet field inside the scoped facet aggregation.
// Sub-aggregations already present under that name are kept.
func (e *Engine) RegisterAggregations(ctx context.Context, args *query.Args) *query.Args {
	out := args.Clone()
	defs := e.Definitions(ctx)
	if len(defs) == 0 {
		return out
	}
	sub := make(map[string]any, len(defs))
	for _, d := range defs {
		sub[d.Name] = map[string]any{
			"terms": map[string]any{
				"size":  d.BucketSize,
				"field": d.Path,
			},
		}
	}
	name := e.settings.AggregationName
	for i, agg := range out.Aggs {
		if agg.Name != name {
			continue
		}
		merged := maps.Clone(agg.Aggs)
		if merged == nil {
			merged = map[string]any{}
		}
		maps.Copy(merged, sub)
		out.Aggs[i].Aggs = merged
		out.Aggs[i].UseFilter = true
		return out
	}
	out.Aggs = append(out.Aggs, query.Aggregation{Name: name, UseFilter: true, Aggs: sub})
	return out
}

// ApplySelection returns a copy of args whose meta query also requires the
// selected values. Each selected field becomes an IN leaf; under MatchAny
// the leaves are joined at OR at the root. Non-facetable queries are
// returned unchanged.
func (e *Engine) ApplySelection(_ context.Context, args *query.Args, sel Selection) *query.Args {
	out := args.Clone()
	if !out.Facetable || sel.IsEmpty() {
		return out
	}
	op := predicate.And
	if e.settings.MatchType == MatchAny {
		op = predicate.Or
	}
	var root predicate.MetaQuery
	if out.MetaQuery != nil && !out.MetaQuery.IsEmpty() {
		root = predicate.AsGroup(*out.MetaQuery)
	} else {
		root = predicate.MetaQuery{Relation: predicate.And}
	}
	for _, field := range sel.Fields() {
		vals := make(predicate.Values, len(sel[field]))
		for i, v := range sel[field] {
			vals[i] = v
		}
		root.Children = append(root.Children, predicate.Leaf(predicate.MetaLeaf{
			Key:      field,
			Value:    vals,
			Compare:  predicate.InList,
			Operator: op,
			HasValue: true,
		}))
	}
	if e.settings.MatchType == MatchAny {
		root.Relation = predicate.Or
	}
	out.MetaQuery = &root
	return out
}

// ExcludeSelected returns a copy of args whose aggregation scoping ignores
// the meta leaves of every facet field. It applies only under MatchAny to
// facetable queries with a meta query.
func (e *Engine) ExcludeSelected(ctx context.Context, args *query.Args) *query.Args {
	out := args.Clone()
	if e.settings.MatchType != MatchAny || !out.Facetable ||
		out.MetaQuery == nil || out.MetaQuery.IsEmpty() {
		return out
	}
	fields := e.Fields(ctx)
	if len(fields) == 0 {
		return out
	}
	for _, f := range fields {
		if !slices.Contains(out.AggFilterExcludeMeta, f) {
			out.AggFilterExcludeMeta = append(out.AggFilterExcludeMeta, f)
		}
	}
	return out
}

// Prepare runs the facet stages on a facetable query. args is not modified.
func (e *Engine) Prepare(ctx context.Context, args *query.Args, sel Selection) Prepared {
	if args == nil {
		args = &query.Args{}
	}
	if !args.Facetable {
		return Prepared{Args: args.Clone(), State: Idle}
	}
	p := Prepared{Args: e.RegisterAggregations(ctx, args), State: AggregationsRegistered}
	p.Args = e.ApplySelection(ctx, p.Args, sel)
	p.State = SelectionsApplied
	before := len(p.Args.AggFilterExcludeMeta)
	p.Args = e.ExcludeSelected(ctx, p.Args)
	if len(p.Args.AggFilterExcludeMeta) > before {
		p.State = FieldsExcluded
	}
	e.logger.Debug("facets prepared",
		zap.Stringer("state", p.State),
		zap.Int("selected", len(sel.Fields())),
	)
	return p
}

func (e *Engine) validField(field string) error {
	if _, err := fieldpath.MetaRoot(field); err != nil {
		return fmt.Errorf("facet field: %w", err)
	}
	return nil
}
