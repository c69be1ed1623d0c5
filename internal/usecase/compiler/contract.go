package compiler

import (
	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/usecase/relevance"
)

// Algorithms resolves a relevance strategy by name.
type Algorithms interface {
	Get(name string) (relevance.Algorithm, error)
}

// Stage is an extension point of the compilation pipeline.
type Stage int

const (
	// StageSort runs once size and sort are set.
	StageSort Stage = iota
	// StageFilter runs after the filter tree is built. The document carries the
	// tree in PostFilter; a nil PostFilter afterwards disables filtering.
	// It runs again, on a document holding only PostFilter, for the
	// aggregation filter rebuilt without excluded meta keys.
	StageFilter
	// StageFinal runs on the finished document.
	StageFinal
)

// Mutator rewrites a document at one stage.
type Mutator func(dsl.Document) dsl.Document

// StickyPredicate decides whether sticky boosting may apply to a request.
type StickyPredicate func(*query.Args) bool

// Option configures a Compiler.
type Option func(*Compiler)

// WithMutator appends fn to the mutators of stage.
func WithMutator(stage Stage, fn Mutator) Option {
	return func(c *Compiler) {
		c.mutators[stage] = append(c.mutators[stage], fn)
	}
}

// WithStickyPredicate replaces the default sticky predicate (front page only).
func WithStickyPredicate(fn StickyPredicate) Option {
	return func(c *Compiler) {
		c.sticky = fn
	}
}
