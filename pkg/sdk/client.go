package elasticpress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alaa-alshamy/ElasticPress/internal/app"
	"github.com/alaa-alshamy/ElasticPress/internal/config"
	"github.com/alaa-alshamy/ElasticPress/internal/db"
	"github.com/alaa-alshamy/ElasticPress/internal/domain"
	domcontent "github.com/alaa-alshamy/ElasticPress/internal/domain/content"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/query"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/usecase/facet"
	searchuc "github.com/alaa-alshamy/ElasticPress/internal/usecase/search"
)

// Internal seams, replaced in tests.
type queryUseCase interface {
	Compile(ctx context.Context, args *query.Args, sel facet.Selection) (dsl.Document, error)
	Search(ctx context.Context, args *query.Args, sel facet.Selection) (*searchuc.Result, error)
}

type facetUseCase interface {
	Definitions(ctx context.Context) []facet.Definition
	Values(ctx context.Context, field string) ([]string, error)
	Invalidate(ctx context.Context, fields ...string)
	InvalidateAll(ctx context.Context)
	Purge(ctx context.Context)
}

type contentUseCase interface {
	Index(ctx context.Context, doc domcontent.Document) error
	Delete(ctx context.Context, id int64) error
	Bulk(ctx context.Context, docs []domcontent.Document) []domcontent.Result
}

type versionUseCase interface {
	Version(ctx context.Context, index string) (string, error)
}

// Client is the elasticpress SDK entry point.
type Client struct {
	closer    func()
	pinger    db.Pinger
	querySvc  queryUseCase
	facetSvc  facetUseCase
	content   contentUseCase
	versions  versionUseCase
	healthSvc healthUseCase
	index     string
	obs       *observer
}

// New creates a Client, connects to the cache and search backend and waits
// until the cache answers. The context bounds the readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, o := range opts {
		o.apply(cc)
	}

	cfg, err := buildConfig(cc)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cc.logger, cc.metricsReg)
	if err != nil {
		return nil, err
	}

	var appOpts []app.Option
	if cc.store != nil {
		appOpts = append(appOpts, app.WithStore(cc.store))
	}
	if cc.embedder != nil {
		appOpts = append(appOpts, app.WithEmbedder(&embedderAdapter{inner: cc.embedder}))
	}

	a, err := app.Build(ctx, cfg, zap.NewNop(), appOpts...)
	if err != nil {
		return nil, fmt.Errorf("elasticpress: %w", err)
	}
	if err := a.WatchBlocks(); err != nil {
		a.Close()
		return nil, fmt.Errorf("elasticpress: %w", err)
	}

	return &Client{
		closer:    a.Close,
		pinger:    a.Store,
		querySvc:  a.Query,
		facetSvc:  a.Facets,
		content:   a.Content,
		versions:  a.Versions,
		healthSvc: a.Health,
		index:     cfg.Search.Index,
		obs:       obs,
	}, nil
}

func buildConfig(cc *clientConfig) (config.Config, error) {
	var cfg config.Config
	if cc.configFile != "" {
		loaded, err := config.LoadFile(cc.configFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("elasticpress: %w", err)
		}
		cfg = loaded
	}
	for _, edit := range cc.edits {
		edit(&cfg)
	}
	if len(cfg.Cache.Addrs) == 0 {
		return config.Config{}, errors.New("elasticpress: cache address required (use WithRedis)")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("elasticpress: %w", err)
	}
	return cfg, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Ping checks cache connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe(ctx, opPing, start, err) }()

	if err = c.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Compile turns JSON query arguments into the search document that would be
// sent to the backend.
func (c *Client) Compile(ctx context.Context, args []byte, sel Selection) (doc json.RawMessage, err error) {
	start := time.Now()
	defer func() { c.obs.observe(ctx, opCompile, start, err) }()

	q, err := decodeArgs(args)
	if err != nil {
		return nil, err
	}
	compiled, err := c.querySvc.Compile(ctx, q, facet.Selection(sel))
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	out, err := json.Marshal(compiled)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return out, nil
}

// Search compiles args and runs them. Facet buckets are returned for
// facetable queries ("ep_facet": true).
func (c *Client) Search(ctx context.Context, args []byte, sel Selection) (res *SearchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe(ctx, opSearch, start, err) }()

	q, err := decodeArgs(args)
	if err != nil {
		return nil, err
	}
	r, err := c.querySvc.Search(ctx, q, facet.Selection(sel))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return toSearchResult(r), nil
}

// Facets lists the facet fields and how they are aggregated.
func (c *Client) Facets(ctx context.Context) []FacetDefinition {
	defs := c.facetSvc.Definitions(ctx)
	out := make([]FacetDefinition, len(defs))
	for i, d := range defs {
		out[i] = FacetDefinition{
			Field:          d.Field,
			Label:          d.Label,
			Path:           d.Path,
			BucketSize:     d.BucketSize,
			MaxValueLength: d.MaxValueLength,
		}
	}
	return out
}

// FacetValues returns the distinct indexed values of a facet field, cached
// until the next content change.
func (c *Client) FacetValues(ctx context.Context, field string) (values []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe(ctx, opFacetValues, start, err) }()

	values, err = c.facetSvc.Values(ctx, field)
	if err != nil {
		return values, fmt.Errorf("facet values: %w", err)
	}
	return values, nil
}

// InvalidateFacets drops cached values of fields, or of every facet field
// when none are given.
func (c *Client) InvalidateFacets(ctx context.Context, fields ...string) {
	start := time.Now()
	if len(fields) == 0 {
		c.facetSvc.InvalidateAll(ctx)
	} else {
		c.facetSvc.Invalidate(ctx, fields...)
	}
	c.obs.observe(ctx, opInvalidate, start, nil)
}

// PurgeFacets removes every cached facet entry, including fields that are
// no longer configured.
func (c *Client) PurgeFacets(ctx context.Context) {
	start := time.Now()
	c.facetSvc.Purge(ctx)
	c.obs.observe(ctx, opPurge, start, nil)
}

// Index stores one content document. Cached facet values are invalidated
// once the change event is handled.
func (c *Client) Index(ctx context.Context, id int64, source map[string]any) (err error) {
	start := time.Now()
	defer func() { c.obs.observe(ctx, opIndex, start, err) }()

	doc, err := domcontent.New(id, source)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidArgs, err)
	}
	if err = c.content.Index(ctx, doc); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	return nil
}

// Delete removes one content document.
func (c *Client) Delete(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { c.obs.observe(ctx, opDelete, start, err) }()

	if err = c.content.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Bulk indexes items and reports each outcome in input order.
func (c *Client) Bulk(ctx context.Context, items []BulkItem) []BulkResult {
	start := time.Now()

	out := make([]BulkResult, len(items))
	docs := make([]domcontent.Document, 0, len(items))
	pos := make([]int, 0, len(items))
	for i, it := range items {
		out[i].ID = it.ID
		doc, err := domcontent.New(it.ID, it.Source)
		if err != nil {
			out[i].Err = fmt.Errorf("%w: %w", domain.ErrInvalidArgs, err)
			continue
		}
		docs = append(docs, doc)
		pos = append(pos, i)
	}

	var failed error
	if len(docs) > 0 {
		for j, r := range c.content.Bulk(ctx, docs) {
			out[pos[j]].Err = r.Err()
		}
	}
	for _, r := range out {
		if r.Err != nil {
			failed = r.Err
			break
		}
	}
	c.obs.observe(ctx, opBulk, start, failed)
	return out
}

// IndexVersion reports the mapping version of the content index.
func (c *Client) IndexVersion(ctx context.Context) (v string, err error) {
	start := time.Now()
	defer func() { c.obs.observe(ctx, opIndexVersion, start, err) }()

	v, err = c.versions.Version(ctx, c.index)
	if err != nil {
		return "", fmt.Errorf("index version: %w", err)
	}
	return v, nil
}

func decodeArgs(data []byte) (*query.Args, error) {
	if len(data) == 0 {
		return &query.Args{}, nil
	}
	q, err := query.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}
	return q, nil
}

func toSearchResult(r *searchuc.Result) *SearchResult {
	out := &SearchResult{Total: r.Total, IDs: r.IDs}
	if len(r.Facets) > 0 {
		out.Facets = make(map[string][]FacetBucket, len(r.Facets))
		for field, buckets := range r.Facets {
			bs := make([]FacetBucket, len(buckets))
			for i, b := range buckets {
				bs[i] = FacetBucket{Key: b.Key, Count: b.Count}
			}
			out.Facets[field] = bs
		}
	}
	return out
}

// embedderAdapter wraps the public Embedder to satisfy domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
