package elasticpress

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alaa-alshamy/ElasticPress/internal/config"
	"github.com/alaa-alshamy/ElasticPress/internal/db"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	// configFile, when set, is loaded first; other options override it.
	configFile string
	edits      []func(*config.Config)

	embedder Embedder
	// store replaces the Redis connection. Tests only.
	store db.Store

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

func (c *clientConfig) edit(fn func(*config.Config)) {
	c.edits = append(c.edits, fn)
}

// WithConfigFile loads a service YAML config as the base for other options.
// ${VAR} references and EP_* environment variables apply as in the server.
func WithConfigFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.configFile = path
	})
}

// WithRedis sets the cache holding facet values, mapping versions and
// query embeddings.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.edit(func(cfg *config.Config) {
			cfg.Cache.Driver = "redis"
			cfg.Cache.Addrs = []string{addr}
			cfg.Cache.Password = password
		})
	})
}

// WithElasticsearch runs searches against the given cluster nodes.
func WithElasticsearch(urls ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.edit(func(cfg *config.Config) {
			cfg.Search.Driver = "elasticsearch"
			cfg.Search.URLs = urls
		})
	})
}

// WithElasticsearchAuth sets basic auth credentials for Elasticsearch.
func WithElasticsearchAuth(username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.edit(func(cfg *config.Config) {
			cfg.Search.Username = username
			cfg.Search.Password = password
		})
	})
}

// WithBleve runs searches against an embedded index stored under dir.
// An empty dir keeps the index in memory.
func WithBleve(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.edit(func(cfg *config.Config) {
			cfg.Search.Driver = "bleve"
			cfg.Search.BlevePath = dir
		})
	})
}

// WithIndex sets the content index name. Default: "posts".
func WithIndex(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.edit(func(cfg *config.Config) { cfg.Search.Index = name })
	})
}

// WithContentType sets the managed content type slug. Default: "post".
func WithContentType(slug string) Option {
	return optionFunc(func(c *clientConfig) {
		c.edit(func(cfg *config.Config) { cfg.Query.ContentType = slug })
	})
}

// WithFacetFields adds meta fields served as facets.
func WithFacetFields(fields ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.edit(func(cfg *config.Config) {
			cfg.Facets.Fields = append(cfg.Facets.Fields, fields...)
		})
	})
}

// WithFacetBlocks reads additional facet fields from a YAML file of
// rendered facet blocks.
func WithFacetBlocks(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.edit(func(cfg *config.Config) { cfg.Facets.BlocksFile = path })
	})
}

// WithMatchType sets how selections on different fields combine.
// Default: MatchAll.
func WithMatchType(m MatchType) Option {
	return optionFunc(func(c *clientConfig) {
		c.edit(func(cfg *config.Config) { cfg.Facets.MatchType = string(m) })
	})
}

// WithEmbedder enables the "semantic" search algorithm.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithLogger enables structured logging of client operations.
// Pass nil to disable (default).
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

func withStore(s db.Store) Option {
	return optionFunc(func(c *clientConfig) {
		c.store = s
	})
}
