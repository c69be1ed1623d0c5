package elasticpress

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/alaa-alshamy/ElasticPress/internal/db"
	domcontent "github.com/alaa-alshamy/ElasticPress/internal/domain/content"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/usecase/facet"
	searchuc "github.com/alaa-alshamy/ElasticPress/internal/usecase/search"
)

// --- queryUseCase mock ---

type mockQueryUC struct {
	compileFn func(ctx context.Context, args *query.Args, sel facet.Selection) (dsl.Document, error)
	searchFn  func(ctx context.Context, args *query.Args, sel facet.Selection) (*searchuc.Result, error)
}

func (m *mockQueryUC) Compile(ctx context.Context, args *query.Args, sel facet.Selection) (dsl.Document, error) {
	return m.compileFn(ctx, args, sel)
}

func (m *mockQueryUC) Search(ctx context.Context, args *query.Args, sel facet.Selection) (*searchuc.Result, error) {
	return m.searchFn(ctx, args, sel)
}

// --- facetUseCase mock ---

type mockFacetUC struct {
	defs        []facet.Definition
	valuesFn    func(ctx context.Context, field string) ([]string, error)
	invalidated []string
	all         int
	purged      int
}

func (m *mockFacetUC) Definitions(context.Context) []facet.Definition { return m.defs }

func (m *mockFacetUC) Values(ctx context.Context, field string) ([]string, error) {
	return m.valuesFn(ctx, field)
}

func (m *mockFacetUC) Invalidate(_ context.Context, fields ...string) {
	m.invalidated = append(m.invalidated, fields...)
}

func (m *mockFacetUC) InvalidateAll(context.Context) { m.all++ }
func (m *mockFacetUC) Purge(context.Context)         { m.purged++ }

// --- contentUseCase mock ---

type mockContentUC struct {
	indexFn  func(ctx context.Context, doc domcontent.Document) error
	deleteFn func(ctx context.Context, id int64) error
	bulkFn   func(ctx context.Context, docs []domcontent.Document) []domcontent.Result
}

func (m *mockContentUC) Index(ctx context.Context, doc domcontent.Document) error {
	return m.indexFn(ctx, doc)
}

func (m *mockContentUC) Delete(ctx context.Context, id int64) error {
	return m.deleteFn(ctx, id)
}

func (m *mockContentUC) Bulk(ctx context.Context, docs []domcontent.Document) []domcontent.Result {
	return m.bulkFn(ctx, docs)
}

// --- versionUseCase mock ---

type mockVersionUC struct {
	version string
	err     error
	index   string
}

func (m *mockVersionUC) Version(_ context.Context, index string) (string, error) {
	m.index = index
	return m.version, m.err
}

// --- embedder mock ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

// --- in-memory db.Store ---

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

var _ db.Store = (*memStore)(nil)

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Ping(context.Context) error                              { return nil }
func (m *memStore) Close()                                                  {}
func (m *memStore) WaitForReady(context.Context, time.Duration) error       { return nil }
func (m *memStore) Set(ctx context.Context, key string, value []byte) error { return m.SetWithTTL(ctx, key, value, 0) }

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memStore) Scan(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

// --- helpers ---

func testClient(q queryUseCase, f facetUseCase, c contentUseCase, v versionUseCase) *Client {
	return &Client{
		querySvc: q,
		facetSvc: f,
		content:  c,
		versions: v,
		index:    "posts",
	}
}
