// Package facetcache stores distinct facet values in the key-value store.
package facetcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/alaa-alshamy/ElasticPress/internal/db"
)

// DefaultPrefix is prepended to the field name to form a cache key.
const DefaultPrefix = "ep_facet_meta_"

// store is the consumer interface for the facet cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Cache maps a facet field to its cached distinct values. Entries never
// expire; they are removed by invalidation.
type Cache struct {
	store      store
	prefix     string
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a cache. An empty prefix uses DefaultPrefix.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(s store, prefix string, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: s, prefix: prefix, cacheTotal: cacheTotal, logger: logger}
}

// Get returns the cached values for field. Read and decode failures count
// as a miss.
func (c *Cache) Get(ctx context.Context, field string) ([]string, bool) {
	key := c.key(field)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to read facet values", zap.String("key", key), zap.Error(err))
		}
		c.inc("miss")
		return nil, false
	}

	var values []string
	if err := msgpack.Unmarshal(data, &values); err != nil {
		c.logger.Warn("Failed to decode facet values", zap.String("key", key), zap.Error(err))
		c.inc("miss")
		return nil, false
	}
	if values == nil {
		values = []string{}
	}
	c.inc("hit")
	return values, true
}

// Set stores values for field without expiry.
func (c *Cache) Set(ctx context.Context, field string, values []string) error {
	if values == nil {
		values = []string{}
	}
	data, err := msgpack.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode facet values: %w", err)
	}
	if err := c.store.Set(ctx, c.key(field), data); err != nil {
		return fmt.Errorf("store facet values: %w", err)
	}
	return nil
}

// Delete drops the entries of fields.
func (c *Cache) Delete(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = c.key(f)
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete facet values: %w", err)
	}
	return nil
}

// DeleteAll drops every entry under the cache prefix.
func (c *Cache) DeleteAll(ctx context.Context) error {
	keys, err := c.store.Scan(ctx, c.prefix+"*")
	if err != nil {
		return fmt.Errorf("scan facet values: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete facet values: %w", err)
	}
	return nil
}

func (c *Cache) key(field string) string {
	return c.prefix + field
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
