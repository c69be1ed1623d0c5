// Package search compiles content queries, runs them against the search
// backend and decodes facet buckets from the response.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/alaa-alshamy/ElasticPress/internal/db"
	"github.com/alaa-alshamy/ElasticPress/internal/domain"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/logger"
	"github.com/alaa-alshamy/ElasticPress/internal/usecase/facet"
)

// Result is a search response reduced to what listings need.
type Result struct {
	Total        int64                      `json:"total"`
	IDs          []string                   `json:"ids"`
	Aggregations map[string]json.RawMessage `json:"aggregations,omitempty"`
	Facets       map[string][]facet.Bucket  `json:"facets,omitempty"`
}

// Service runs content queries.
type Service struct {
	compiler Compiler
	facets   Facets
	backend  Backend
	index    string
}

// New creates a search service. facets may be nil.
func New(compiler Compiler, facets Facets, backend Backend, index string) *Service {
	return &Service{compiler: compiler, facets: facets, backend: backend, index: index}
}

// Compile prepares facets on args and builds the search document.
func (s *Service) Compile(ctx context.Context, args *query.Args, sel facet.Selection) (dsl.Document, error) {
	if args == nil {
		args = &query.Args{}
	}
	if s.facets != nil {
		args = s.facets.Prepare(ctx, args, sel).Args
	}
	doc, err := s.compiler.Compile(ctx, args)
	if err != nil {
		return dsl.Document{}, fmt.Errorf("compile query: %w", err)
	}
	return doc, nil
}

// Search compiles args and runs the document against the content index.
// Facet buckets that cannot be decoded are logged and left out.
func (s *Service) Search(ctx context.Context, args *query.Args, sel facet.Selection) (*Result, error) {
	doc, err := s.Compile(ctx, args, sel)
	if err != nil {
		return nil, err
	}
	res, err := s.backend.Search(ctx, s.index, doc)
	if err != nil {
		return nil, backendError(err)
	}

	out := &Result{Total: res.Total, IDs: res.IDs(), Aggregations: res.Aggregations}
	if s.facets != nil && len(res.Aggregations) > 0 {
		buckets, err := s.facets.Buckets(res.Aggregations)
		if err != nil {
			logger.FromContext(ctx).Warn("Failed to decode facet buckets", zap.Error(err))
		} else if len(buckets) > 0 {
			out.Facets = buckets
		}
	}
	return out, nil
}

func backendError(err error) error {
	switch {
	case errors.Is(err, db.ErrIndexNotFound):
		return fmt.Errorf("search: %w: %w", domain.ErrNotFound, err)
	case errors.Is(err, db.ErrUnavailable):
		return fmt.Errorf("search: %w: %w", domain.ErrBackendUnavailable, err)
	}
	return fmt.Errorf("search: %w", err)
}
