// Package relevance holds the interchangeable free-text query strategies.
package relevance

import (
	"context"
	"slices"
	"sync"

	"github.com/alaa-alshamy/ElasticPress/internal/domain"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
)

// Input is what a strategy gets to build its query from.
type Input struct {
	ContentType string
	Text        string
	Fields      []string
	Args        *query.Args
}

// Algorithm builds the scoring query for free-text search.
type Algorithm interface {
	Name() string
	Query(ctx context.Context, in Input) (dsl.Clause, error)
}

// Registry maps algorithm names to strategies. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	algos map[string]Algorithm
}

// NewRegistry creates a registry holding algos.
func NewRegistry(algos ...Algorithm) *Registry {
	r := &Registry{algos: make(map[string]Algorithm, len(algos))}
	for _, a := range algos {
		r.algos[a.Name()] = a
	}
	return r
}

// Builtin returns a registry with the text strategies.
func Builtin() *Registry {
	return NewRegistry(NewV40(), NewV35(), NewBasic())
}

// Register adds or replaces a strategy.
func (r *Registry) Register(a Algorithm) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.algos[a.Name()] = a
}

// Get returns the strategy registered under name.
func (r *Registry) Get(name string) (Algorithm, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.algos[name]
	if !ok {
		return nil, domain.NewUnknownAlgorithm(name)
	}
	return a, nil
}

// Names lists registered strategies in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.algos))
	for n := range r.algos {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
