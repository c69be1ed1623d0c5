// Package bleve implements an embedded search backend on bleve. It serves
// local development and tests where no Elasticsearch cluster is available.
package bleve

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/alaa-alshamy/ElasticPress/internal/db"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/metrics"
)

// Compile-time checks.
var (
	_ db.SearchBackend = (*Store)(nil)
	_ db.Indexer       = (*Store)(nil)
)

const backendName = "bleve"

// MappingVersion is reported for every bleve index.
const MappingVersion = "7-0.php"

// textFields are analyzed for full-text search. Every other string field is
// indexed verbatim so term filters and distinct values see exact values.
var textFields = []string{"post_title", "post_content", "post_excerpt"}

// Store keeps one bleve index per content index name. Indexes are created
// on first write.
type Store struct {
	dir string

	mu      sync.RWMutex
	indexes map[string]bleve.Index
}

// NewMemOnly creates a store whose indexes live in memory.
func NewMemOnly() *Store {
	return &Store{indexes: map[string]bleve.Index{}}
}

// NewStore creates a store persisting indexes under dir. Existing indexes are
// opened lazily.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required")
	}
	return &Store{dir: dir, indexes: map[string]bleve.Index{}}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	for _, f := range textFields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		doc.AddFieldMappingsAt(f, fm)
	}
	im.DefaultMapping = doc
	return im
}

// Ping always succeeds for an embedded index.
func (s *Store) Ping(context.Context) error { return nil }

// Close closes every open index.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, idx := range s.indexes {
		_ = idx.Close()
		delete(s.indexes, name)
	}
}

// IndexDocument stores source under id, creating the index when missing.
func (s *Store) IndexDocument(_ context.Context, index, id string, source map[string]any) error {
	defer observe(db.OpIndexDoc, time.Now())

	idx, err := s.open(index, true)
	if err != nil {
		return &db.Error{Op: db.OpIndexDoc, Err: err}
	}
	if err := idx.Index(id, source); err != nil {
		return &db.Error{Op: db.OpIndexDoc, Err: err}
	}
	return nil
}

// DeleteDocument removes id from index. Missing documents are not an error.
func (s *Store) DeleteDocument(_ context.Context, index, id string) error {
	defer observe(db.OpDelete, time.Now())

	idx, err := s.open(index, false)
	if err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	if err := idx.Delete(id); err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	return nil
}

// Search runs the supported subset of doc against index. Aggregations are
// not evaluated.
func (s *Store) Search(_ context.Context, index string, doc dsl.Document) (*db.SearchResult, error) {
	defer observe(db.OpSearch, time.Now())

	idx, err := s.open(index, false)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	req, err := searchRequest(doc)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	res, err := idx.Search(req)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	out := &db.SearchResult{
		Total: int64(res.Total),
		Hits:  make([]db.Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		src, err := json.Marshal(h.Fields)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		out.Hits = append(out.Hits, db.Hit{ID: h.ID, Score: h.Score, Source: src})
	}
	return out, nil
}

// DistinctValues reads the term dictionary of field, most frequent first.
func (s *Store) DistinctValues(_ context.Context, index, field string, size int) ([]string, error) {
	defer observe(db.OpTerms, time.Now())

	idx, err := s.open(index, false)
	if err != nil {
		return nil, &db.Error{Op: db.OpTerms, Err: err}
	}
	dict, err := idx.FieldDict(field)
	if err != nil {
		return nil, &db.Error{Op: db.OpTerms, Err: err}
	}
	defer dict.Close()

	type termCount struct {
		term  string
		count uint64
	}
	var terms []termCount
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, &db.Error{Op: db.OpTerms, Err: err}
		}
		if entry == nil {
			break
		}
		// Terms of deleted documents linger in the dictionary until merge.
		if entry.Count == 0 {
			continue
		}
		terms = append(terms, termCount{term: entry.Term, count: entry.Count})
	}
	slices.SortStableFunc(terms, func(a, b termCount) int {
		return cmp.Compare(b.count, a.count)
	})

	values := make([]string, 0, min(len(terms), max(size, 0)))
	for _, t := range terms {
		if len(values) >= size {
			break
		}
		values = append(values, t.term)
	}
	return values, nil
}

// Mapping reports a current-format mapping for index.
func (s *Store) Mapping(_ context.Context, index string) (map[string]any, error) {
	if _, err := s.open(index, false); err != nil {
		return nil, &db.Error{Op: db.OpMapping, Err: err}
	}
	return map[string]any{
		index: map[string]any{
			"mappings": map[string]any{
				"_meta": map[string]any{"mapping_version": MappingVersion},
			},
		},
	}, nil
}

// open returns the index named name. With create it builds a missing index,
// otherwise a missing index yields db.ErrIndexNotFound.
func (s *Store) open(name string, create bool) (bleve.Index, error) {
	s.mu.RLock()
	idx, ok := s.indexes[name]
	s.mu.RUnlock()
	if ok {
		return idx, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[name]; ok {
		return idx, nil
	}

	var err error
	switch {
	case s.dir == "" && create:
		idx, err = bleve.NewMemOnly(buildIndexMapping())
	case s.dir == "":
		return nil, db.ErrIndexNotFound
	default:
		path := filepath.Join(s.dir, name)
		idx, err = bleve.Open(path)
		if err != nil && create {
			idx, err = bleve.New(path, buildIndexMapping())
		} else if err != nil {
			return nil, db.ErrIndexNotFound
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create index %s: %w", name, err)
	}
	s.indexes[name] = idx
	return idx, nil
}

func observe(op string, start time.Time) {
	metrics.BackendRequestDuration.WithLabelValues(backendName, op).Observe(time.Since(start).Seconds())
}
