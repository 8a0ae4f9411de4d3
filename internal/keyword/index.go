// Package keyword provides keyword search over transcript chunks.
package keyword

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// KeywordIndex indexes chunk text per video and serves term-match queries.
// The retriever uses it to boost vector hits that also match the question's
// terms (hybrid retrieval).
type KeywordIndex interface {
	IndexChunks(ctx context.Context, videoID string, chunks []models.Chunk) error
	DeleteVideo(ctx context.Context, videoID string) error
	Search(ctx context.Context, videoID, query string, limit int) ([]*KeywordResult, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ChunkID string
	Score   float64
}
