// Package embedding provides text embedding via an external provider, with caching.
package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
)

// Embedder produces vector embeddings for text. Chunks and questions must be
// embedded by the same implementation so they share one embedding space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// NewEmbedder creates an embedder for the configured provider.
// Supported providers: "openai" (default), "mock".
func NewEmbedder(cfg *config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIEmbedder(cfg)
	case "mock":
		return NewMockEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, mock)", cfg.Provider)
	}
}
