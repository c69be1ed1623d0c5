package schemaver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alaa-alshamy/ElasticPress/internal/db"
	"github.com/alaa-alshamy/ElasticPress/internal/domain"
)

func parse(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return m
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		mapping string
		want    string
	}{
		{"typed meta", `{"mappings":{"post":{"_meta":{"mapping_version":"5-2.php"}}}}`, "5-2.php"},
		{"untyped meta", `{"mappings":{"_meta":{"mapping_version":"7-0.php"},"properties":{}}}`, "7-0.php"},
		{"no post type", `{"mappings":{"properties":{"post_title":{}}}}`, Version70},
		{"custom mapping", `{"mappings":{"post":{"properties":{"post_title":{"type":"text"}}}}}`, Unknown},
		{"normalizer", `{"mappings":{"post":{"properties":{"post_title":{"fields":{"sortable":{"type":"keyword","normalizer":"lowerasciinormalizer"}}}}}}}`, Version52},
		{"keyword", `{"mappings":{"post":{"properties":{"post_title":{"fields":{"sortable":{"type":"keyword"}}}}}}}`, Version50},
		{"string", `{"mappings":{"post":{"properties":{"post_title":{"fields":{"sortable":{"type":"string"}}}}}}}`, VersionPre50},
		{"other sortable type", `{"mappings":{"post":{"properties":{"post_title":{"fields":{"sortable":{"type":"text"}}}}}}}`, Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(parse(t, tt.mapping)); got != tt.want {
				t.Errorf("Detect() = %q, want %q", got, tt.want)
			}
		})
	}
}

type mockSource struct {
	mapping map[string]any
	err     error
	calls   int
}

func (m *mockSource) Mapping(context.Context, string) (map[string]any, error) {
	m.calls++
	return m.mapping, m.err
}

type mockStore struct {
	data   map[string][]byte
	ttl    time.Duration
	getErr error
}

func newMockStore() *mockStore { return &mockStore{data: map[string][]byte{}} }

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	m.ttl = ttl
	return nil
}

func (m *mockStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestVersion_ReadThrough(t *testing.T) {
	src := &mockSource{mapping: parse(t, `{"posts":{"mappings":{"_meta":{"mapping_version":"7-0.php"}}}}`)}
	st := newMockStore()
	r := New(src, st, "", 0, nil)
	ctx := context.Background()

	for range 2 {
		v, err := r.Version(ctx, "posts")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != "7-0.php" {
			t.Fatalf("unexpected version %q", v)
		}
	}
	if src.calls != 1 {
		t.Errorf("expected one mapping fetch, got %d", src.calls)
	}
	if st.ttl != 24*time.Hour {
		t.Errorf("expected default ttl of a day, got %v", st.ttl)
	}
	if string(st.data[defaultKey]) != "7-0.php" {
		t.Errorf("unexpected cached value %q", st.data[defaultKey])
	}
}

func TestVersion_Invalidate(t *testing.T) {
	src := &mockSource{mapping: parse(t, `{"posts":{"mappings":{}}}`)}
	st := newMockStore()
	r := New(src, st, "k", time.Minute, nil)
	ctx := context.Background()

	_, _ = r.Version(ctx, "posts")
	if err := r.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	_, _ = r.Version(ctx, "posts")
	if src.calls != 2 {
		t.Errorf("expected refetch after invalidation, got %d fetches", src.calls)
	}
}

func TestVersion_CacheReadErrorFallsBack(t *testing.T) {
	src := &mockSource{mapping: parse(t, `{"posts":{"mappings":{}}}`)}
	st := newMockStore()
	st.getErr = errors.New("connection reset")
	r := New(src, st, "", 0, nil)

	v, err := r.Version(context.Background(), "posts")
	if err != nil || v != Version70 {
		t.Fatalf("Version() = %q, %v", v, err)
	}
}

func TestVersion_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  *mockSource
		want error
	}{
		{"backend error", &mockSource{err: db.ErrUnavailable}, db.ErrUnavailable},
		{"empty mapping", &mockSource{mapping: map[string]any{}}, domain.ErrBackendUnavailable},
		{"index missing", &mockSource{mapping: map[string]any{"other": map[string]any{}}}, domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newMockStore()
			r := New(tt.src, st, "", 0, nil)
			if _, err := r.Version(context.Background(), "posts"); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(st.data) != 0 {
				t.Error("failures must not be cached")
			}
		})
	}
}
