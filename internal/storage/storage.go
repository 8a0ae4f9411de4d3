// Package storage defines the persistence interface for videos and index records.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kotae/internal/models"
)

// Storage persists per-video state and built index records. IndexStore is
// the only writer of index records; the coordinator owns video rows.
type Storage interface {
	// Video operations
	UpsertVideo(ctx context.Context, video *models.Video) error
	GetVideo(ctx context.Context, id string) (*models.Video, error)
	SetSummary(ctx context.Context, id, summary string) error

	// Index record operations. ReplaceIndex swaps the record and its chunks
	// in one transaction; readers never observe a half-written record.
	ReplaceIndex(ctx context.Context, meta *models.IndexMeta, chunks []*models.Chunk) error
	GetIndexMeta(ctx context.Context, videoID string) (*models.IndexMeta, error)
	GetIndexChunks(ctx context.Context, videoID string) ([]*models.Chunk, error)
	DeleteIndex(ctx context.Context, videoID string) error

	// Stats
	CountVideos(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}

// ErrNotFound is returned by lookups when no row exists.
type notFoundError struct{ what string }

func (e *notFoundError) Error() string { return e.what + " not found" }

// NotFound returns a not-found error for what (e.g. "video", "index record").
func NotFound(what string) error { return &notFoundError{what: what} }

// IsNotFound reports whether err is a storage not-found error.
func IsNotFound(err error) bool {
	var e *notFoundError
	return errors.As(err, &e)
}
