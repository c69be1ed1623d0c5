package relevance

import (
	"context"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
)

// V40 is the default strategy: an exact phrase boosted over a cross-field
// AND match, with a fuzzy best-fields match as fallback.
type V40 struct {
	PhraseBoost float64
	MatchBoost  float64
	FuzzyBoost  float64
	Fuzziness   string
}

// NewV40 creates the strategy with stock boosts.
func NewV40() *V40 {
	return &V40{PhraseBoost: 3, MatchBoost: 1, FuzzyBoost: 1, Fuzziness: "auto"}
}

// Name implements Algorithm.
func (a *V40) Name() string { return "4.0" }

// Query implements Algorithm.
func (a *V40) Query(_ context.Context, in Input) (dsl.Clause, error) {
	return dsl.Bool{Should: []dsl.Clause{
		dsl.MultiMatch(in.Text, in.Fields, map[string]any{"type": "phrase", "boost": a.PhraseBoost}),
		dsl.MultiMatch(in.Text, in.Fields, map[string]any{"type": "cross_fields", "operator": "and", "boost": a.MatchBoost}),
		dsl.MultiMatch(in.Text, in.Fields, map[string]any{"type": "best_fields", "fuzziness": a.Fuzziness, "boost": a.FuzzyBoost}),
	}}.Clause(), nil
}

// V35 is the previous default: phrase, exact AND match and a one-edit fuzzy match.
type V35 struct {
	PhraseBoost float64
	MatchBoost  float64
	Fuzziness   int
}

// NewV35 creates the strategy with stock boosts.
func NewV35() *V35 {
	return &V35{PhraseBoost: 3, MatchBoost: 1, Fuzziness: 1}
}

// Name implements Algorithm.
func (a *V35) Name() string { return "3.5" }

// Query implements Algorithm.
func (a *V35) Query(_ context.Context, in Input) (dsl.Clause, error) {
	return dsl.Bool{Should: []dsl.Clause{
		dsl.MultiMatch(in.Text, in.Fields, map[string]any{"type": "phrase", "boost": a.PhraseBoost}),
		dsl.MultiMatch(in.Text, in.Fields, map[string]any{"boost": a.MatchBoost, "fuzziness": 0, "operator": "and"}),
		dsl.MultiMatch(in.Text, in.Fields, map[string]any{"fuzziness": a.Fuzziness}),
	}}.Clause(), nil
}

// Basic is a single multi_match over the search fields.
type Basic struct{}

// NewBasic creates the strategy.
func NewBasic() *Basic { return &Basic{} }

// Name implements Algorithm.
func (Basic) Name() string { return "basic" }

// Query implements Algorithm.
func (Basic) Query(_ context.Context, in Input) (dsl.Clause, error) {
	return dsl.Bool{Should: []dsl.Clause{
		dsl.MultiMatch(in.Text, in.Fields, nil),
	}}.Clause(), nil
}
