package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/alaa-alshamy/ElasticPress/internal/domain"
	"github.com/alaa-alshamy/ElasticPress/internal/metrics"
)

func embeddingServer(t *testing.T, h http.HandlerFunc) *Embedder {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewEmbedder(&Config{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		Model:      "test-model",
		Dimensions: 4,
		Provider:   "test",
	})
}

func writeEmbedding(w http.ResponseWriter, vec []float32, tokens int) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"model":  "test-model",
		"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vec}},
		"usage":  map[string]int{"prompt_tokens": tokens, "total_tokens": tokens},
	})
}

func TestEmbed(t *testing.T) {
	var gotBody map[string]any
	emb := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		writeEmbedding(w, []float32{0.1, 0.2, 0.3, 0.4}, 12)
	})

	before := testutil.ToFloat64(metrics.EmbeddingRequestsTotal.WithLabelValues("test", "test-model", "success"))
	res, err := emb.Embed(context.Background(), "  red shoes ")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(res.Embedding) != 4 || res.TotalTokens != 12 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if in, _ := gotBody["input"].([]any); len(in) != 1 || in[0] != "red shoes" {
		t.Errorf("input = %v", gotBody["input"])
	}
	if gotBody["dimensions"] != float64(4) {
		t.Errorf("dimensions = %v", gotBody["dimensions"])
	}
	after := testutil.ToFloat64(metrics.EmbeddingRequestsTotal.WithLabelValues("test", "test-model", "success"))
	if after != before+1 {
		t.Errorf("success counter %v -> %v", before, after)
	}
}

func TestEmbed_EmptyText(t *testing.T) {
	emb := embeddingServer(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("provider must not be called")
	})
	if _, err := emb.Embed(context.Background(), "   "); !errors.Is(err, domain.ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs, got %v", err)
	}
}

func TestEmbed_EmptyResponse(t *testing.T) {
	emb := embeddingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[],"model":"test-model","usage":{}}`))
	})
	if _, err := emb.Embed(context.Background(), "x"); !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestEmbed_APIError(t *testing.T) {
	emb := embeddingServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limit exceeded", "type": "rate_limit_error"},
		})
	})
	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestDetail(t *testing.T) {
	if got := detail([]byte(`{"detail":"model not found"}`)); got != "model not found" {
		t.Errorf("detail = %q", got)
	}
	if got := detail([]byte(`not json`)); got != "" {
		t.Errorf("detail = %q", got)
	}
}

func TestHealthCheck(t *testing.T) {
	emb := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	})
	if err := emb.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
