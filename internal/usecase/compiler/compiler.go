// Package compiler turns content queries into search documents.
package compiler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/fieldpath"
	"github.com/alaa-alshamy/ElasticPress/internal/logger"
	"github.com/alaa-alshamy/ElasticPress/internal/metrics"
	"github.com/alaa-alshamy/ElasticPress/internal/usecase/relevance"
)

// Compiler builds search documents. Safe for concurrent use once constructed.
type Compiler struct {
	cfg      Config
	algos    Algorithms
	mutators map[Stage][]Mutator
	sticky   StickyPredicate
}

// New creates a compiler. Zero fields of cfg take their defaults.
func New(cfg Config, algos Algorithms, opts ...Option) *Compiler {
	if algos == nil {
		algos = relevance.Builtin()
	}
	c := &Compiler{
		cfg:      cfg.withDefaults(),
		algos:    algos,
		mutators: map[Stage][]Mutator{},
		sticky:   func(a *query.Args) bool { return a.IsHome },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Compiler) Config() Config { return c.cfg }

// Compile builds the search document for a. a is not modified.
func (c *Compiler) Compile(ctx context.Context, a *query.Args) (dsl.Document, error) {
	if a == nil {
		a = &query.Args{}
	}
	kind := "browse"
	if a.HasSearch() {
		kind = "search"
	}
	doc, err := c.compile(ctx, a)
	if err != nil {
		metrics.QueryCompileTotal.WithLabelValues(kind, "error").Inc()
		return dsl.Document{}, err
	}
	metrics.QueryCompileTotal.WithLabelValues(kind, "ok").Inc()
	logger.FromContext(ctx).Debug("query compiled",
		zap.String("kind", kind),
		zap.Int("size", doc.Size),
		zap.Int("from", doc.From),
		zap.Int("aggs", len(doc.Aggs)),
	)
	return doc, nil
}

func (c *Compiler) compile(ctx context.Context, a *query.Args) (dsl.Document, error) {
	var doc dsl.Document

	doc.Size = c.pageSize(a)
	sorts, random := c.compileSort(a)
	doc.Sort = sorts
	doc = c.run(StageSort, doc)

	doc.PostFilter = c.buildFilter(a, nil).Clause()
	doc = c.run(StageFilter, doc)
	usesFilters := doc.PostFilter != nil

	q, err := c.scoringQuery(ctx, a)
	if err != nil {
		return dsl.Document{}, err
	}
	doc.Query = q

	if random {
		doc.Query = dsl.RandomScore(doc.Query)
		doc.Sort = nil
	}
	if c.stickyApplies(a) {
		doc.Sort = append([]dsl.Clause{dsl.SortBy(fieldpath.Score.String(), dsl.Desc)}, doc.Sort...)
		doc.Query = dsl.WeightedScore(doc.Query,
			dsl.Terms(fieldpath.ID.String(), int64sToAny(c.cfg.StickyIDs)), c.cfg.StickyWeight)
	}

	doc.From = pageOffset(a, doc.Size)
	doc.Source = projection(a.Fields)

	aggFilter := doc.PostFilter
	if len(a.AggFilterExcludeMeta) > 0 {
		scoped := c.run(StageFilter, dsl.Document{PostFilter: c.buildFilter(a, a.AggFilterExcludeMeta).Clause()})
		aggFilter = scoped.PostFilter
	}
	doc = injectAggs(doc, a.Aggs, aggFilter)

	if !usesFilters {
		doc.PostFilter = nil
	}
	return c.run(StageFinal, doc), nil
}

func (c *Compiler) run(stage Stage, doc dsl.Document) dsl.Document {
	for _, fn := range c.mutators[stage] {
		doc = fn(doc)
	}
	return doc
}

// scoringQuery picks the relevance strategy for search text, or match_all
// when the caller forces it. Nil means no scoring query.
func (c *Compiler) scoringQuery(ctx context.Context, a *query.Args) (dsl.Clause, error) {
	if a.HasSearch() {
		name := a.SearchAlgorithm
		if name == "" {
			name = c.cfg.SearchAlgorithm
		}
		algo, err := c.algos.Get(name)
		if err != nil {
			return nil, fmt.Errorf("resolve search algorithm: %w", err)
		}
		fields := c.searchFields(a)
		q, err := algo.Query(ctx, relevance.Input{
			ContentType: c.cfg.ContentType,
			Text:        a.Search,
			Fields:      fields,
			Args:        a,
		})
		if err != nil {
			return nil, fmt.Errorf("build %s query: %w", algo.Name(), err)
		}
		return dropFuzziness(q, fields), nil
	}
	if a.MatchAll || a.Integrate {
		return dsl.MatchAll(), nil
	}
	return nil, nil
}

func (c *Compiler) stickyApplies(a *query.Args) bool {
	return len(c.cfg.StickyIDs) > 0 &&
		!a.HasSearch() &&
		!a.IgnoreStickyPosts &&
		c.sticky != nil && c.sticky(a)
}

func (c *Compiler) pageSize(a *query.Args) int {
	if a.PostsPerPage == nil {
		return c.cfg.DefaultPageSize
	}
	n := *a.PostsPerPage
	switch {
	case n == query.AllResults:
		return c.cfg.MaxResultsWindow
	case n <= 0:
		return c.cfg.DefaultPageSize
	}
	return n
}

// pageOffset prefers an explicit offset over page arithmetic.
func pageOffset(a *query.Args, size int) int {
	from := 0
	switch {
	case a.Offset != nil:
		from = *a.Offset
	case a.Paged > 1:
		from = size * (a.Paged - 1)
	}
	return max(from, 0)
}

func projection(fields string) *dsl.Source {
	switch fields {
	case query.FieldsIDs:
		return &dsl.Source{Includes: []string{fieldpath.PostID.String()}}
	case query.FieldsIDParent:
		return &dsl.Source{Includes: []string{fieldpath.PostID.String(), fieldpath.PostParent.String()}}
	}
	return nil
}

func int64sToAny(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
