package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	logpkg "github.com/alaa-alshamy/ElasticPress/internal/logger"
	"github.com/alaa-alshamy/ElasticPress/internal/transport/api"
)

func TestJSONRecoverer(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	var body api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != api.ErrorResponseCodeInternalError {
		t.Errorf("code = %q", body.Code)
	}
}

func TestWideEventMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logpkg.FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	})
	h := chiMiddleware.RequestID(wideEventMiddleware(zap.New(core))(inner))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/facets", http.NoBody))

	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rr.Code)
	}
	reqID := rr.Header().Get("X-Request-ID")
	if reqID == "" {
		t.Fatal("expected X-Request-ID header")
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("log entries = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.ContextMap()["request_id"] != reqID {
			t.Errorf("%q: request_id = %v, want %s", e.Message, e.ContextMap()["request_id"], reqID)
		}
	}
	line := entries[1]
	if line.Message != "http_request" {
		t.Fatalf("message = %q", line.Message)
	}
	if got := line.ContextMap()["status"]; got != int64(http.StatusTeapot) {
		t.Errorf("status field = %v", got)
	}
}

func TestNewRouter_AuthAndBadParams(t *testing.T) {
	h := newRouter(api.Unimplemented{}, []string{"secret"}, zap.NewNop())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/facets", http.NoBody))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPut, "/v1/content/abc", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var body api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Code != api.ErrorResponseCodeBadRequest {
		t.Errorf("code = %q", body.Code)
	}
}

func TestParseFilters(t *testing.T) {
	sel, err := parseFilters([]string{"color=red,blue", "size=xl", "color=red"}, "")
	if err != nil {
		t.Fatalf("parseFilters: %v", err)
	}
	if got := strings.Join(sel["color"], ","); got != "red,blue" {
		t.Errorf("color = %q", got)
	}
	if got := strings.Join(sel["size"], ","); got != "xl" {
		t.Errorf("size = %q", got)
	}

	if _, err := parseFilters([]string{"color"}, ""); err == nil {
		t.Error("expected error for missing '='")
	}
	if _, err := parseFilters([]string{"=red"}, ""); err == nil {
		t.Error("expected error for empty field")
	}
}

func TestReadInput(t *testing.T) {
	data, err := readInput(strings.NewReader(`{"s":"x"}`), nil)
	if err != nil || string(data) != `{"s":"x"}` {
		t.Fatalf("stdin: %q, %v", data, err)
	}

	path := filepath.Join(t.TempDir(), "q.json")
	if err := os.WriteFile(path, []byte(`{"paged":2}`), 0o600); err != nil {
		t.Fatal(err)
	}
	data, err = readInput(nil, []string{path})
	if err != nil || string(data) != `{"paged":2}` {
		t.Fatalf("file: %q, %v", data, err)
	}

	if _, err := readInput(nil, []string{filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := printJSON(&buf, map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "{\n  \"a\": 1\n}\n" {
		t.Errorf("output = %q", buf.String())
	}
}
