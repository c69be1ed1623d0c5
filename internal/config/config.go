// Package config loads service settings from config/<env>.yaml with an
// EP_* environment overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/usecase/compiler"
	"github.com/alaa-alshamy/ElasticPress/internal/usecase/facet"
)

// Config holds the query service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Cache     CacheConfig     `yaml:"cache"`
	Search    SearchConfig    `yaml:"search"`
	Query     QueryConfig     `yaml:"query"`
	Facets    FacetsConfig    `yaml:"facets"`
	Bus       BusConfig       `yaml:"bus"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"EP_LOG_LEVEL"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys" envconfig:"EP_API_KEYS"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port" envconfig:"EP_HTTP_PORT"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec" envconfig:"EP_HTTP_READ_TIMEOUT_SEC"`
	WriteTimeoutSec int `yaml:"write_timeout_sec" envconfig:"EP_HTTP_WRITE_TIMEOUT_SEC"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec" envconfig:"EP_HTTP_SHUTDOWN_TIMEOUT_SEC"`
}

// CacheConfig holds the transient key-value store settings.
type CacheConfig struct {
	Driver           string   `yaml:"driver" envconfig:"EP_CACHE_DRIVER"` // redis (default)
	Addrs            []string `yaml:"addrs" envconfig:"EP_CACHE_ADDRS"`
	Username         string   `yaml:"username" envconfig:"EP_CACHE_USERNAME"`
	Password         string   `yaml:"password" envconfig:"EP_CACHE_PASSWORD"`
	DB               int      `yaml:"db" envconfig:"EP_CACHE_DB"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec" envconfig:"EP_CACHE_READINESS_TIMEOUT_SEC"`
	FacetPrefix      string   `yaml:"facet_prefix" envconfig:"EP_CACHE_FACET_PREFIX"`
	MappingKey       string   `yaml:"mapping_version_key" envconfig:"EP_CACHE_MAPPING_VERSION_KEY"`
	MappingTTLSec    int      `yaml:"mapping_version_ttl_sec" envconfig:"EP_CACHE_MAPPING_VERSION_TTL_SEC"`
}

// SearchConfig selects the search backend.
type SearchConfig struct {
	Driver    string   `yaml:"driver" envconfig:"EP_SEARCH_DRIVER"` // elasticsearch (default), bleve
	URLs      []string `yaml:"urls" envconfig:"EP_SEARCH_URLS"`
	Username  string   `yaml:"username" envconfig:"EP_SEARCH_USERNAME"`
	Password  string   `yaml:"password" envconfig:"EP_SEARCH_PASSWORD"`
	Index     string   `yaml:"index" envconfig:"EP_SEARCH_INDEX"`
	BlevePath string   `yaml:"bleve_path" envconfig:"EP_SEARCH_BLEVE_PATH"` // empty keeps the index in memory
}

// QueryConfig holds the site settings the compiler reads.
type QueryConfig struct {
	ContentType         string   `yaml:"content_type" envconfig:"EP_QUERY_CONTENT_TYPE"`
	PrimaryType         string   `yaml:"primary_type" envconfig:"EP_QUERY_PRIMARY_TYPE"`
	DefaultPageSize     int      `yaml:"default_page_size" envconfig:"EP_QUERY_DEFAULT_PAGE_SIZE"`
	MaxResultsWindow    int      `yaml:"max_results_window" envconfig:"EP_QUERY_MAX_RESULTS_WINDOW"`
	DefaultSort         string   `yaml:"default_sort" envconfig:"EP_QUERY_DEFAULT_SORT"`
	DefaultOrder        string   `yaml:"default_order" envconfig:"EP_QUERY_DEFAULT_ORDER"`
	StickyIDs           []int64  `yaml:"sticky_ids" envconfig:"EP_QUERY_STICKY_IDS"`
	StickyWeight        float64  `yaml:"sticky_weight" envconfig:"EP_QUERY_STICKY_WEIGHT"`
	SearchAlgorithm     string   `yaml:"search_algorithm" envconfig:"EP_QUERY_SEARCH_ALGORITHM"`
	DefaultSearchFields []string `yaml:"default_search_fields" envconfig:"EP_QUERY_DEFAULT_SEARCH_FIELDS"`
	MaxBatchSize        int      `yaml:"max_batch_size" envconfig:"EP_QUERY_MAX_BATCH_SIZE"`
}

// FacetsConfig holds the meta facet settings.
type FacetsConfig struct {
	MatchType       string   `yaml:"match_type" envconfig:"EP_FACETS_MATCH_TYPE"`
	Fields          []string `yaml:"fields" envconfig:"EP_FACETS_FIELDS"`
	BlocksFile      string   `yaml:"blocks_file" envconfig:"EP_FACETS_BLOCKS_FILE"`
	AggregationName string   `yaml:"aggregation_name" envconfig:"EP_FACETS_AGGREGATION_NAME"`
	FilterPrefix    string   `yaml:"filter_prefix" envconfig:"EP_FACETS_FILTER_PREFIX"`
	BucketSize      int      `yaml:"bucket_size" envconfig:"EP_FACETS_BUCKET_SIZE"`
	MaxValueLength  int      `yaml:"max_value_length" envconfig:"EP_FACETS_MAX_VALUE_LENGTH"`
	DistinctSize    int      `yaml:"distinct_size" envconfig:"EP_FACETS_DISTINCT_SIZE"`

	Overrides map[string]facet.FieldOverride `yaml:"overrides" ignored:"true"`
}

// BusConfig selects the event bus.
type BusConfig struct {
	Driver        string   `yaml:"driver" envconfig:"EP_BUS_DRIVER"` // memory (default), kafka
	Brokers       []string `yaml:"brokers" envconfig:"EP_BUS_BROKERS"`
	Topic         string   `yaml:"topic" envconfig:"EP_BUS_TOPIC"`
	ConsumerGroup string   `yaml:"consumer_group" envconfig:"EP_BUS_CONSUMER_GROUP"`
}

// EmbeddingConfig configures the optional semantic relevance algorithm.
// An empty model disables it.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider" envconfig:"EP_EMBEDDING_PROVIDER"`
	APIKey      string `yaml:"api_key" envconfig:"EP_EMBEDDING_API_KEY"`
	BaseURL     string `yaml:"base_url" envconfig:"EP_EMBEDDING_BASE_URL"`
	Model       string `yaml:"model" envconfig:"EP_EMBEDDING_MODEL"`
	Dimensions  int    `yaml:"dimensions" envconfig:"EP_EMBEDDING_DIMENSIONS"`
	TimeoutSec  int    `yaml:"timeout_sec" envconfig:"EP_EMBEDDING_TIMEOUT_SEC"`
	CacheTTLSec int    `yaml:"cache_ttl_sec" envconfig:"EP_EMBEDDING_CACHE_TTL_SEC"`
	IndexField  bool   `yaml:"index_field" envconfig:"EP_EMBEDDING_INDEX_FIELD"` // embed documents on write

	QueryInstruction    string `yaml:"query_instruction" envconfig:"EP_EMBEDDING_QUERY_INSTRUCTION"`
	DocumentInstruction string `yaml:"document_instruction" envconfig:"EP_EMBEDDING_DOCUMENT_INSTRUCTION"`
}

// Enabled reports whether a model is configured.
func (e EmbeddingConfig) Enabled() bool { return e.Model != "" }

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from path, then applies EP_* environment
// variables on top.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to apply environment: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "redis"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Search.Driver == "" {
		c.Search.Driver = "elasticsearch"
	}
	if c.Search.Index == "" {
		c.Search.Index = "posts"
	}
	if c.Query.MaxBatchSize <= 0 {
		c.Query.MaxBatchSize = 100
	}
	if c.Facets.MatchType == "" {
		c.Facets.MatchType = string(facet.MatchAll)
	}
	if c.Bus.Driver == "" {
		c.Bus.Driver = "memory"
	}
	if c.Bus.Topic == "" {
		c.Bus.Topic = "ep.content"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 10
	}
	if c.Embedding.CacheTTLSec <= 0 {
		c.Embedding.CacheTTLSec = 86400
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Cache.Driver != "redis" {
		return fmt.Errorf("cache.driver must be \"redis\", got %q", c.Cache.Driver)
	}
	if len(c.Cache.Addrs) == 0 {
		return errors.New("cache.addrs is required")
	}
	switch c.Search.Driver {
	case "elasticsearch":
		if len(c.Search.URLs) == 0 {
			return errors.New("search.urls is required for the elasticsearch driver")
		}
	case "bleve":
	default:
		return fmt.Errorf("search.driver must be \"elasticsearch\" or \"bleve\", got %q", c.Search.Driver)
	}
	switch c.Query.DefaultOrder {
	case "", "asc", "desc":
	default:
		return fmt.Errorf("query.default_order must be \"asc\" or \"desc\", got %q", c.Query.DefaultOrder)
	}
	if err := c.FacetSettings().Validate(); err != nil {
		return fmt.Errorf("facets: %w", err)
	}
	switch c.Bus.Driver {
	case "memory":
	case "kafka":
		if len(c.Bus.Brokers) == 0 {
			return errors.New("bus.brokers is required for the kafka driver")
		}
	default:
		return fmt.Errorf("bus.driver must be \"memory\" or \"kafka\", got %q", c.Bus.Driver)
	}
	if c.Embedding.Enabled() && c.Embedding.Dimensions <= 0 {
		return errors.New("embedding.dimensions is required when a model is set")
	}
	return nil
}

// CompilerConfig converts the query section. Zero values fall back to the
// compiler defaults.
func (c *Config) CompilerConfig() compiler.Config {
	q := c.Query
	return compiler.Config{
		ContentType:         q.ContentType,
		PrimaryType:         q.PrimaryType,
		DefaultPageSize:     q.DefaultPageSize,
		MaxResultsWindow:    q.MaxResultsWindow,
		DefaultSort:         q.DefaultSort,
		DefaultOrder:        dsl.Order(q.DefaultOrder),
		StickyIDs:           q.StickyIDs,
		StickyWeight:        q.StickyWeight,
		SearchAlgorithm:     q.SearchAlgorithm,
		DefaultSearchFields: q.DefaultSearchFields,
	}
}

// FacetSettings converts the facets section.
func (c *Config) FacetSettings() facet.Settings {
	f := c.Facets
	return facet.Settings{
		MatchType:       facet.MatchType(f.MatchType),
		AggregationName: f.AggregationName,
		FilterPrefix:    f.FilterPrefix,
		BucketSize:      f.BucketSize,
		MaxValueLength:  f.MaxValueLength,
		DistinctSize:    f.DistinctSize,
		ContentType:     c.Query.ContentType,
		Index:           c.Search.Index,
		Fields:          f.Fields,
		Overrides:       f.Overrides,
	}
}

// Duration helpers.

func (h HTTPConfig) ReadTimeout() time.Duration     { return time.Duration(h.ReadTimeoutSec) * time.Second }
func (h HTTPConfig) WriteTimeout() time.Duration    { return time.Duration(h.WriteTimeoutSec) * time.Second }
func (h HTTPConfig) ShutdownTimeout() time.Duration { return time.Duration(h.ShutdownSec) * time.Second }

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
