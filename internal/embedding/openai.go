package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

// OpenAIEmbedder calls an OpenAI-compatible /v1/embeddings endpoint.
// Requests are rate limited client-side and retried on transient failures.
type OpenAIEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	batchSize  int
	maxRetries int
	limiter    *rate.Limiter
	cache      *EmbeddingCache
	client     *http.Client
}

// embeddingRequest is the provider request payload.
type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// embeddingResponse is the provider response payload.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewOpenAIEmbedder creates an embedder for the configured provider endpoint.
func NewOpenAIEmbedder(cfg *config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding api_key is required for the openai provider")
	}
	return &OpenAIEmbedder{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
		maxRetries: cfg.MaxRetries,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cache:      NewEmbeddingCache(cfg.CacheSize),
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Embed returns the embedding for a single text, consulting the cache first.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if emb, ok := e.cache.Get(text); ok {
		return emb, nil
	}
	embeddings, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, models.E(models.KindEmbeddingProviderError, "provider returned no embedding")
	}
	return embeddings[0], nil
}

// EmbedBatch embeds texts in provider-sized batches. Cached texts are not
// re-sent; results keep input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if emb, ok := e.cache.Get(text); ok {
			out[i] = emb
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	for start := 0; start < len(missing); start += e.batchSize {
		end := start + e.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]
		embeddings, err := e.embedOnceWithRetry(ctx, batch)
		if err != nil {
			return nil, err
		}
		for j, emb := range embeddings {
			idx := missingIdx[start+j]
			out[idx] = emb
			e.cache.Set(texts[idx], emb)
		}
	}
	return out, nil
}

// embedOnceWithRetry calls the provider, retrying transient failures with
// exponential backoff before surfacing EmbeddingProviderError.
func (e *OpenAIEmbedder) embedOnceWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, models.Wrap(models.KindTimeout, "embedding cancelled", ctx.Err())
			case <-time.After(time.Duration(1<<(attempt-1)) * 200 * time.Millisecond):
			}
		}
		embeddings, retryable, err := e.embedOnce(ctx, batch)
		if err == nil {
			return embeddings, nil
		}
		if !retryable {
			return nil, models.Wrap(models.KindEmbeddingProviderError, "embedding request rejected", err)
		}
		lastErr = err
	}
	return nil, models.Wrap(models.KindEmbeddingProviderError, "embedding provider unreachable", lastErr)
}

func (e *OpenAIEmbedder) embedOnce(ctx context.Context, batch []string) ([][]float32, bool, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	body, err := json.Marshal(embeddingRequest{Input: batch, Model: e.model})
	if err != nil {
		return nil, false, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("provider status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("provider status %d: %s", resp.StatusCode, respBody)
	}

	var apiResp embeddingResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, false, fmt.Errorf("parse response: %w", err)
	}
	if len(apiResp.Data) != len(batch) {
		return nil, false, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(apiResp.Data))
	}

	embeddings := make([][]float32, len(batch))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(batch) {
			return nil, false, fmt.Errorf("invalid embedding index %d", data.Index)
		}
		embeddings[data.Index] = data.Embedding
	}
	return embeddings, false, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client holds no resources needing release.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
