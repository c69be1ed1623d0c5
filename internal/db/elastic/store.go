// Package elastic implements the search backend on Elasticsearch via olivere/elastic.
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/olivere/elastic/v7"

	"github.com/alaa-alshamy/ElasticPress/internal/db"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/metrics"
)

// Compile-time check: Store implements db.SearchBackend.
var _ db.SearchBackend = (*Store)(nil)

const backendName = "elasticsearch"

const distinctAggName = "distinct_values"

// Config holds connection parameters for an Elasticsearch cluster.
type Config struct {
	URLs     []string
	Username string
	Password string
	// HTTPClient overrides the transport, e.g. in tests.
	HTTPClient *http.Client
}

// Store runs compiled documents against Elasticsearch.
type Store struct {
	client *elastic.Client
	url    string
}

// NewStore creates a client. Sniffing and background health checks are
// disabled so the store works behind load balancers.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.URLs) == 0 {
		return nil, fmt.Errorf("urls is required")
	}

	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(cfg.URLs...),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	}
	if cfg.Username != "" {
		opts = append(opts, elastic.SetBasicAuth(cfg.Username, cfg.Password))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, elastic.SetHttpClient(cfg.HTTPClient))
	}

	client, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Store{client: client, url: cfg.URLs[0]}, nil
}

// Ping checks cluster connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if _, _, err := s.client.Ping(s.url).Do(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close stops the client.
func (s *Store) Close() {
	s.client.Stop()
}

// Search runs doc against index.
func (s *Store) Search(ctx context.Context, index string, doc dsl.Document) (*db.SearchResult, error) {
	defer observe(db.OpSearch, time.Now())

	res, err := s.client.Search().Index(index).Source(doc).Do(ctx)
	if err != nil {
		return nil, wrap(db.OpSearch, err)
	}

	out := &db.SearchResult{Aggregations: res.Aggregations}
	if res.Hits == nil {
		return out, nil
	}
	if res.Hits.TotalHits != nil {
		out.Total = res.Hits.TotalHits.Value
	}
	out.Hits = make([]db.Hit, 0, len(res.Hits.Hits))
	for _, h := range res.Hits.Hits {
		hit := db.Hit{ID: h.Id, Source: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// DistinctValues returns up to size distinct values of field via a terms aggregation.
func (s *Store) DistinctValues(ctx context.Context, index, field string, size int) ([]string, error) {
	defer observe(db.OpTerms, time.Now())

	agg := elastic.NewTermsAggregation().Field(field).Size(size)
	res, err := s.client.Search().
		Index(index).
		Size(0).
		Aggregation(distinctAggName, agg).
		Do(ctx)
	if err != nil {
		return nil, wrap(db.OpTerms, err)
	}

	items, ok := res.Aggregations.Terms(distinctAggName)
	if !ok {
		return []string{}, nil
	}
	values := make([]string, 0, len(items.Buckets))
	for _, b := range items.Buckets {
		if b.KeyAsString != nil {
			values = append(values, *b.KeyAsString)
			continue
		}
		values = append(values, fmt.Sprint(b.Key))
	}
	return values, nil
}

// Mapping returns the raw mapping of index.
func (s *Store) Mapping(ctx context.Context, index string) (map[string]any, error) {
	defer observe(db.OpMapping, time.Now())

	// GetMapping always appends a type segment, which ES 7 rejects and ES 8 removed.
	res, err := s.client.PerformRequest(ctx, elastic.PerformRequestOptions{
		Method: http.MethodGet,
		Path:   "/" + url.PathEscape(index) + "/_mapping",
	})
	if err != nil {
		return nil, wrap(db.OpMapping, err)
	}
	var m map[string]any
	if err := json.Unmarshal(res.Body, &m); err != nil {
		return nil, &db.Error{Op: db.OpMapping, Err: fmt.Errorf("decode mapping: %w", err)}
	}
	return m, nil
}

// IndexDocument stores source under id.
func (s *Store) IndexDocument(ctx context.Context, index, id string, source map[string]any) error {
	defer observe(db.OpIndexDoc, time.Now())

	if _, err := s.client.Index().Index(index).Id(id).BodyJson(source).Do(ctx); err != nil {
		return wrap(db.OpIndexDoc, err)
	}
	return nil
}

// DeleteDocument removes id from index. Missing documents are not an error.
func (s *Store) DeleteDocument(ctx context.Context, index, id string) error {
	defer observe(db.OpDelete, time.Now())

	_, err := s.client.Delete().Index(index).Id(id).Do(ctx)
	if err != nil && !elastic.IsNotFound(err) {
		return wrap(db.OpDelete, err)
	}
	return nil
}

func wrap(op string, err error) error {
	if elastic.IsNotFound(err) {
		return &db.Error{Op: op, Err: db.ErrIndexNotFound}
	}
	if elastic.IsConnErr(err) {
		return &db.Error{Op: op, Err: fmt.Errorf("%w: %w", db.ErrUnavailable, err)}
	}
	return &db.Error{Op: op, Err: err}
}

func observe(op string, start time.Time) {
	metrics.BackendRequestDuration.WithLabelValues(backendName, op).Observe(time.Since(start).Seconds())
}
