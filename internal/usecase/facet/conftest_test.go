package facet

import (
	"context"
	"errors"
	"maps"
	"sync"
	"sync/atomic"
)

type mockFieldSource struct {
	fields []string
	err    error
}

func (m *mockFieldSource) MetaFields(_ context.Context) ([]string, error) {
	return m.fields, m.err
}

type mockValueSource struct {
	values map[string][]string
	err    error
	calls  atomic.Int32
	gate   chan struct{}

	mu       sync.Mutex
	lastArgs struct {
		index, field string
		size         int
	}
}

func (m *mockValueSource) DistinctValues(_ context.Context, index, field string, size int) ([]string, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.lastArgs.index, m.lastArgs.field, m.lastArgs.size = index, field, size
	m.mu.Unlock()
	if m.gate != nil {
		<-m.gate
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.values[field], nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]string
	err     error
	deletes int
	purges  int
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]string{}}
}

func (c *memCache) Get(_ context.Context, field string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[field]
	return v, ok
}

func (c *memCache) Set(_ context.Context, field string, values []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries[field] = values
	return nil
}

func (c *memCache) Delete(_ context.Context, fields ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	if c.err != nil {
		return c.err
	}
	for _, f := range fields {
		delete(c.entries, f)
	}
	return nil
}

func (c *memCache) DeleteAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.purges++
	if c.err != nil {
		return c.err
	}
	maps.DeleteFunc(c.entries, func(string, []string) bool { return true })
	return nil
}

func (c *memCache) has(field string) bool {
	_, ok := c.Get(context.Background(), field)
	return ok
}

var errBackend = errors.New("connection refused")
