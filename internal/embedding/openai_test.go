package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

func newTestEmbedder(t *testing.T, baseURL string) *OpenAIEmbedder {
	t.Helper()
	e, err := NewOpenAIEmbedder(&config.EmbeddingConfig{
		BaseURL:           baseURL,
		APIKey:            "test-key",
		Model:             "test-model",
		Dimensions:        3,
		BatchSize:         2,
		CacheSize:         100,
		TimeoutSeconds:    5,
		MaxRetries:        2,
		RequestsPerSecond: 1000,
	})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func embeddingHandler(hits *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var req embeddingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := embeddingResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i), 1, 0}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestEmbedBatchOrderAndBatching(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(embeddingHandler(&hits))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL)
	texts := []string{"one", "two", "three"}
	embeddings, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(embeddings) != 3 {
		t.Fatalf("got %d embeddings", len(embeddings))
	}
	// batch size 2 → two provider calls for three texts
	if hits.Load() != 2 {
		t.Errorf("expected 2 provider calls, got %d", hits.Load())
	}
}

func TestEmbedUsesCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(embeddingHandler(&hits))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL)
	if _, err := e.Embed(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 1 {
		t.Errorf("cached text should not be re-sent, got %d calls", hits.Load())
	}
}

func TestEmbedRetriesThenSurfacesKind(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL)
	_, err := e.Embed(context.Background(), "x")
	if !models.IsKind(err, models.KindEmbeddingProviderError) {
		t.Errorf("kind=%s", models.KindOf(err))
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
}

func TestEmbedRejectionNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"bad key"}`)
	}))
	defer srv.Close()

	e := newTestEmbedder(t, srv.URL)
	_, err := e.Embed(context.Background(), "x")
	if !models.IsKind(err, models.KindEmbeddingProviderError) {
		t.Errorf("kind=%s", models.KindOf(err))
	}
	if hits.Load() != 1 {
		t.Errorf("4xx must not be retried, got %d calls", hits.Load())
	}
}

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(8)
	a, _ := e.Embed(context.Background(), "same text")
	b, _ := e.Embed(context.Background(), "same text")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("mock embeddings must be deterministic")
		}
	}
	if e.EmbedCalls() != 2 {
		t.Errorf("EmbedCalls=%d", e.EmbedCalls())
	}
}
