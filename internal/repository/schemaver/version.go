// Package schemaver reports which mapping version the content index was
// created with, caching the answer in the key-value store.
package schemaver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alaa-alshamy/ElasticPress/internal/db"
	"github.com/alaa-alshamy/ElasticPress/internal/domain"
)

// Known mapping versions.
const (
	Version70    = "7-0.php"
	Version52    = "5-2.php"
	Version50    = "5-0.php"
	VersionPre50 = "pre-5-0.php"
	Unknown      = "unknown"
)

const (
	defaultKey = "ep_post_mapping_version"
	defaultTTL = 24 * time.Hour
)

type mappingSource interface {
	Mapping(ctx context.Context, index string) (map[string]any, error)
}

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Resolver is a read-through cache over the index mapping.
type Resolver struct {
	source mappingSource
	store  store
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a resolver. ttl <= 0 means one day; an empty key uses the default.
func New(source mappingSource, s store, key string, ttl time.Duration, logger *zap.Logger) *Resolver {
	if key == "" {
		key = defaultKey
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{source: source, store: s, key: key, ttl: ttl, logger: logger}
}

// Version returns the mapping version of index. A mapping without an entry
// for index yields domain.ErrNotFound.
func (r *Resolver) Version(ctx context.Context, index string) (string, error) {
	data, err := r.store.Get(ctx, r.key)
	switch {
	case err == nil && len(data) > 0:
		return string(data), nil
	case err != nil && !errors.Is(err, db.ErrKeyNotFound):
		r.logger.Warn("Failed to read cached mapping version", zap.Error(err))
	}

	mapping, err := r.source.Mapping(ctx, index)
	if err != nil {
		return "", fmt.Errorf("fetch mapping: %w", err)
	}
	if len(mapping) == 0 {
		return "", fmt.Errorf("fetch mapping: %w: empty response", domain.ErrBackendUnavailable)
	}
	own, ok := mapping[index].(map[string]any)
	if !ok {
		return "", fmt.Errorf("mapping of %s: %w", index, domain.ErrNotFound)
	}

	version := Detect(own)
	if err := r.store.SetWithTTL(ctx, r.key, []byte(version), r.ttl); err != nil {
		r.logger.Warn("Failed to cache mapping version", zap.Error(err))
	}
	return version, nil
}

// Invalidate forgets the cached version, e.g. after the mapping is replaced.
func (r *Resolver) Invalidate(ctx context.Context) error {
	if err := r.store.Del(ctx, r.key); err != nil {
		return fmt.Errorf("invalidate mapping version: %w", err)
	}
	return nil
}

// Detect derives the version from one index's mapping. An explicit
// _meta.mapping_version wins; otherwise the version is inferred from
// features each engine release introduced.
func Detect(index map[string]any) string {
	if v, ok := lookup(index, "mappings", "post", "_meta", "mapping_version").(string); ok {
		return v
	}
	if v, ok := lookup(index, "mappings", "_meta", "mapping_version").(string); ok {
		return v
	}

	// Typed mappings were removed in 7.0.
	post, ok := lookup(index, "mappings", "post").(map[string]any)
	if !ok {
		return Version70
	}

	sortable, ok := lookup(post, "properties", "post_title", "fields", "sortable").(map[string]any)
	if !ok {
		return Unknown
	}
	if _, ok := sortable["normalizer"]; ok {
		return Version52
	}
	switch sortable["type"] {
	case "keyword":
		return Version50
	case "string":
		return VersionPre50
	}
	return Unknown
}

func lookup(m map[string]any, path ...string) any {
	var cur any = m
	for _, p := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = obj[p]
		if !ok {
			return nil
		}
	}
	return cur
}
