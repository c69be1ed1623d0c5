package facet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Bucket is one distinct value and the number of matching documents.
type Bucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type termsResult struct {
	Buckets []struct {
		Key         json.RawMessage `json:"key"`
		KeyAsString string          `json:"key_as_string"`
		DocCount    int64           `json:"doc_count"`
	} `json:"buckets"`
}

// Buckets reads the facet buckets out of raw search aggregations, keyed by
// field. Missing aggregations yield an empty map.
func (e *Engine) Buckets(aggs map[string]json.RawMessage) (map[string][]Bucket, error) {
	out := map[string][]Bucket{}
	scope := aggs
	if raw, ok := aggs[e.settings.AggregationName]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode %s aggregation: %w", e.settings.AggregationName, err)
		}
		scope = inner
	}
	for name, raw := range scope {
		field, ok := strings.CutPrefix(name, e.settings.FilterPrefix)
		if !ok || field == "" {
			continue
		}
		var res termsResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("decode %s buckets: %w", name, err)
		}
		buckets := make([]Bucket, 0, len(res.Buckets))
		for _, b := range res.Buckets {
			key := b.KeyAsString
			if key == "" {
				key = bucketKey(b.Key)
			}
			buckets = append(buckets, Bucket{Key: key, Count: b.DocCount})
		}
		out[field] = buckets
	}
	return out, nil
}

func bucketKey(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
