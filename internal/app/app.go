// Package app wires the query service components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alaa-alshamy/ElasticPress/internal/bus"
	"github.com/alaa-alshamy/ElasticPress/internal/config"
	"github.com/alaa-alshamy/ElasticPress/internal/db"
	dbBleve "github.com/alaa-alshamy/ElasticPress/internal/db/bleve"
	dbElastic "github.com/alaa-alshamy/ElasticPress/internal/db/elastic"
	dbRedis "github.com/alaa-alshamy/ElasticPress/internal/db/redis"
	"github.com/alaa-alshamy/ElasticPress/internal/domain"
	"github.com/alaa-alshamy/ElasticPress/internal/metrics"
	"github.com/alaa-alshamy/ElasticPress/internal/repository/blocks"
	"github.com/alaa-alshamy/ElasticPress/internal/repository/embcache"
	"github.com/alaa-alshamy/ElasticPress/internal/repository/facetcache"
	"github.com/alaa-alshamy/ElasticPress/internal/repository/schemaver"
	openaiEmb "github.com/alaa-alshamy/ElasticPress/internal/transport/openai"
	"github.com/alaa-alshamy/ElasticPress/internal/usecase/compiler"
	contentuc "github.com/alaa-alshamy/ElasticPress/internal/usecase/content"
	embeddinguc "github.com/alaa-alshamy/ElasticPress/internal/usecase/embedding"
	"github.com/alaa-alshamy/ElasticPress/internal/usecase/facet"
	healthuc "github.com/alaa-alshamy/ElasticPress/internal/usecase/health"
	"github.com/alaa-alshamy/ElasticPress/internal/usecase/relevance"
	searchuc "github.com/alaa-alshamy/ElasticPress/internal/usecase/search"
)

// Backend is a search backend that can also write documents.
type Backend interface {
	db.SearchBackend
	db.Indexer
}

// Option overrides a component Build would otherwise create.
type Option func(*overrides)

type overrides struct {
	store    db.Store
	backend  Backend
	bus      bus.Bus
	embedder domain.Embedder
}

// WithStore uses s instead of connecting to the configured cache.
func WithStore(s db.Store) Option { return func(o *overrides) { o.store = s } }

// WithBackend uses b instead of the configured search driver.
func WithBackend(b Backend) Option { return func(o *overrides) { o.backend = b } }

// WithBus uses b instead of the configured bus driver.
func WithBus(b bus.Bus) Option { return func(o *overrides) { o.bus = b } }

// WithEmbedder uses e as the base embedding provider. The cache and
// instrumentation decorators are still applied.
func WithEmbedder(e domain.Embedder) Option { return func(o *overrides) { o.embedder = e } }

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Config   config.Config
	Store    db.Store
	Backend  Backend
	Bus      bus.Bus
	Blocks   *blocks.Source
	Facets   *facet.Engine
	Compiler *compiler.Compiler
	Query    *searchuc.Service
	Content  *contentuc.Service
	Versions *schemaver.Resolver
	Health   *healthuc.Service
	// Embedder is nil when no embedding model is configured.
	Embedder domain.Embedder

	logger  *zap.Logger
	closers []func()
}

// Build connects to the configured backends and wires the services.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	metrics.RegisterQueryMetrics()
	metrics.RegisterEmbeddingMetrics()

	a := &App{Config: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	store, err := openStore(ctx, cfg.Cache, o.store)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.onClose(store.Close)

	backend, err := openBackend(cfg.Search, o.backend)
	if err != nil {
		return nil, err
	}
	a.Backend = backend
	a.onClose(backend.Close)

	events := o.bus
	if events == nil {
		events, err = bus.New(bus.Config{
			Driver:        cfg.Bus.Driver,
			Brokers:       cfg.Bus.Brokers,
			Topic:         cfg.Bus.Topic,
			ConsumerGroup: cfg.Bus.ConsumerGroup,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create bus: %w", err)
		}
	}
	a.Bus = events
	a.onClose(func() {
		if err := events.Close(); err != nil {
			logger.Warn("Failed to close bus", zap.Error(err))
		}
	})

	var fields facet.FieldSource
	if cfg.Facets.BlocksFile != "" {
		a.Blocks = blocks.New(cfg.Facets.BlocksFile, logger)
		a.onClose(a.Blocks.Close)
		fields = a.Blocks
	}
	cache := facetcache.New(store, cfg.Cache.FacetPrefix, metrics.FacetCacheTotal, logger)
	a.Facets = facet.New(cfg.FacetSettings(), fields, backend, cache, logger)
	if err := events.Subscribe(ctx, a.Facets.HandleEvent); err != nil {
		return nil, fmt.Errorf("subscribe facet invalidation: %w", err)
	}

	algos := relevance.Builtin()
	var docEmbedder domain.Embedder
	if cfg.Embedding.Enabled() || o.embedder != nil {
		base := o.embedder
		if base == nil {
			base = openaiEmb.NewEmbedder(&openaiEmb.Config{
				APIKey:     cfg.Embedding.APIKey,
				BaseURL:    cfg.Embedding.BaseURL,
				Model:      cfg.Embedding.Model,
				Dimensions: cfg.Embedding.Dimensions,
				Provider:   cfg.Embedding.Provider,
				Logger:     logger,
			})
		}
		a.Embedder = buildEmbedder(base, cfg.Embedding, cfg.Embedding.QueryInstruction, store, logger)
		algos.Register(relevance.NewSemantic(a.Embedder, nil))
		if cfg.Embedding.IndexField {
			docEmbedder = buildEmbedder(base, cfg.Embedding, cfg.Embedding.DocumentInstruction, nil, logger)
		}
	}
	a.Compiler = compiler.New(cfg.CompilerConfig(), algos)
	a.Query = searchuc.New(a.Compiler, a.Facets, backend, cfg.Search.Index)

	a.Content = contentuc.New(backend, events, cfg.Search.Index, cfg.Query.ContentType).
		WithMaxBatchSize(cfg.Query.MaxBatchSize)
	if docEmbedder != nil {
		a.Content = a.Content.WithEmbedder(docEmbedder)
	}

	a.Versions = schemaver.New(backend, store, cfg.Cache.MappingKey,
		time.Duration(cfg.Cache.MappingTTLSec)*time.Second, logger)

	// A nil *InstrumentedEmbedder must not reach the interface.
	var embCheck healthuc.EmbeddingChecker
	if hc, isChecker := a.Embedder.(healthuc.EmbeddingChecker); isChecker {
		embCheck = hc
	}
	a.Health = healthuc.New(store, backend, embCheck)

	ok = true
	return a, nil
}

// WatchBlocks reloads the facet blocks file on change. It is a no-op
// without a blocks file.
func (a *App) WatchBlocks() error {
	if a.Blocks == nil {
		return nil
	}
	if err := a.Blocks.Watch(); err != nil {
		return fmt.Errorf("watch facet blocks: %w", err)
	}
	return nil
}

// Close releases all resources.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) { a.closers = append(a.closers, fn) }

func openStore(ctx context.Context, cfg config.CacheConfig, override db.Store) (db.Store, error) {
	if override != nil {
		return override, nil
	}
	if cfg.Driver != "redis" {
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("cache not ready: %w", err)
	}
	return store, nil
}

func openBackend(cfg config.SearchConfig, override Backend) (Backend, error) {
	if override != nil {
		return override, nil
	}
	switch cfg.Driver {
	case "elasticsearch":
		s, err := dbElastic.NewStore(dbElastic.Config{
			URLs:     cfg.URLs,
			Username: cfg.Username,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create search backend: %w", err)
		}
		return s, nil
	case "bleve":
		if cfg.BlevePath == "" {
			return dbBleve.NewMemOnly(), nil
		}
		s, err := dbBleve.NewStore(cfg.BlevePath)
		if err != nil {
			return nil, fmt.Errorf("create search backend: %w", err)
		}
		return s, nil
	}
	return nil, errors.New("unknown search driver " + cfg.Driver)
}

// buildEmbedder assembles the decorator chain:
// provider -> cache (when store is set) -> instrumented -> instruction.
func buildEmbedder(
	base domain.Embedder,
	cfg config.EmbeddingConfig,
	instruction string,
	store db.Store,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if store != nil {
		embedder = embcache.New(embedder, store, embcache.Options{
			Model: cfg.Model,
			TTL:   time.Duration(cfg.CacheTTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, cfg.Provider, cfg.Model, cfg.Dimensions,
		time.Duration(cfg.TimeoutSec)*time.Second, logger,
	)

	// Outermost, so the cache key includes the instruction.
	if instruction != "" {
		return &instructed{InstructionEmbedder: domain.NewInstructionEmbedder(embedder, instruction), inner: embedder}
	}
	return embedder
}

// instructed keeps the health check of the wrapped chain visible.
type instructed struct {
	*domain.InstructionEmbedder
	inner domain.Embedder
}

func (e *instructed) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // pass-through
	}
	return nil
}
