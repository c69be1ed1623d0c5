package elastic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alaa-alshamy/ElasticPress/internal/db"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
)

func newTestStore(t *testing.T, h http.HandlerFunc) *Store {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	s, err := NewStore(Config{URLs: []string{srv.URL}})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNewStore_RequiresURLs(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Fatal("expected error for empty urls")
	}
}

func TestSearch_Success(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusOK, `{
			"took": 1,
			"hits": {
				"total": {"value": 2, "relation": "eq"},
				"hits": [
					{"_index": "posts", "_id": "1", "_score": 1.5, "_source": {"post_id": 1}},
					{"_index": "posts", "_id": "2", "_score": null, "_source": {"post_id": 2}}
				]
			},
			"aggregations": {"terms": {"doc_count": 2}}
		}`)
	})

	doc := dsl.Document{Size: 10, Query: dsl.MatchAll()}
	res, err := s.Search(context.Background(), "posts", doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/posts/_search" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotBody["size"] != float64(10) {
		t.Errorf("expected size 10 in request body, got %v", gotBody["size"])
	}
	if _, ok := gotBody["query"]; !ok {
		t.Error("expected query in request body")
	}

	if res.Total != 2 {
		t.Errorf("expected total 2, got %d", res.Total)
	}
	if len(res.Hits) != 2 || res.Hits[0].ID != "1" || res.Hits[0].Score != 1.5 {
		t.Fatalf("unexpected hits %+v", res.Hits)
	}
	if res.Hits[1].Score != 0 {
		t.Errorf("expected zero score for null, got %v", res.Hits[1].Score)
	}
	if _, ok := res.Aggregations["terms"]; !ok {
		t.Error("expected terms aggregation in result")
	}
}

func TestSearch_IndexNotFound(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{
			"error": {"type": "index_not_found_exception", "reason": "no such index [posts]"},
			"status": 404
		}`)
	})

	_, err := s.Search(context.Background(), "posts", dsl.Document{})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpSearch {
		t.Fatalf("expected db.Error with op %s, got %v", db.OpSearch, err)
	}
}

func TestSearch_ServerError(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"error": {"type": "exception", "reason": "boom"}, "status": 500}`)
	})

	_, err := s.Search(context.Background(), "posts", dsl.Document{})
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, db.ErrIndexNotFound) {
		t.Error("server error must not map to ErrIndexNotFound")
	}
}

func TestDistinctValues(t *testing.T) {
	var gotBody map[string]any
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusOK, `{
			"hits": {"total": {"value": 3, "relation": "eq"}, "hits": []},
			"aggregations": {
				"distinct_values": {
					"buckets": [
						{"key": "red", "doc_count": 2},
						{"key": 42, "key_as_string": "42", "doc_count": 1}
					]
				}
			}
		}`)
	})

	values, err := s.DistinctValues(context.Background(), "posts", "meta.color.raw", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(values) != 2 || values[0] != "red" || values[1] != "42" {
		t.Fatalf("unexpected values %v", values)
	}

	if gotBody["size"] != float64(0) {
		t.Errorf("expected size 0, got %v", gotBody["size"])
	}
	aggs, _ := gotBody["aggregations"].(map[string]any)
	distinct, _ := aggs["distinct_values"].(map[string]any)
	terms, _ := distinct["terms"].(map[string]any)
	if terms["field"] != "meta.color.raw" || terms["size"] != float64(100) {
		t.Errorf("unexpected terms aggregation %v", terms)
	}
}

func TestDistinctValues_NoAggregation(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"hits": {"total": {"value": 0, "relation": "eq"}, "hits": []}}`)
	})

	values, err := s.DistinctValues(context.Background(), "posts", "meta.color.raw", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values == nil || len(values) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", values)
	}
}

func TestMapping(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/posts/_mapping" {
			t.Errorf("unexpected request %s %q", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusOK, `{"posts": {"mappings": {"_meta": {"mapping_version": "7-0.php"}}}}`)
	})

	m, err := s.Mapping(context.Background(), "posts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	idx, ok := m["posts"].(map[string]any)
	if !ok {
		t.Fatalf("expected posts entry, got %v", m)
	}
	if _, ok := idx["mappings"]; !ok {
		t.Errorf("expected mappings, got %v", idx)
	}
}

func TestMapping_MissingIndex(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error": {"type": "index_not_found_exception"}, "status": 404}`)
	})

	_, err := s.Mapping(context.Background(), "missing")
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"name": "node-1", "cluster_name": "test", "version": {"number": "7.17.0"}}`)
	})

	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPing_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s, err := NewStore(Config{URLs: []string{url}})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer s.Close()

	err = s.Ping(context.Background())
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpPing {
		t.Fatalf("expected db.Error with op %s, got %v", db.OpPing, err)
	}
}

func TestIndexDocument(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]any
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeJSON(w, http.StatusCreated, `{"_index":"posts","_id":"7","_version":1,"result":"created"}`)
	})

	err := s.IndexDocument(context.Background(), "posts", "7", map[string]any{"post_title": "Hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPut || gotPath != "/posts/_doc/7" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
	if gotBody["post_title"] != "Hello" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestDeleteDocument_MissingIsNotAnError(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/posts/_doc/7" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusNotFound, `{"_index":"posts","_id":"7","result":"not_found"}`)
	})

	if err := s.DeleteDocument(context.Background(), "posts", "7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteDocument_ServerError(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"error":{"type":"exception","reason":"boom"},"status":500}`)
	})

	err := s.DeleteDocument(context.Background(), "posts", "7")
	var dbErr *db.Error
	if !errors.As(err, &dbErr) || dbErr.Op != db.OpDelete {
		t.Fatalf("expected db.Error for delete, got %v", err)
	}
}
