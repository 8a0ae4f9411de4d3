// Package vector provides immutable per-video vector search snapshots.
package vector

import (
	"fmt"
	"sort"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

// Hit is a single similarity search result.
type Hit struct {
	Chunk *models.Chunk
	Score float64
}

// Snapshot is one built version of a video's index: an ordered chunk list
// with embeddings, searched by brute-force inner product. Snapshots are
// immutable once built; a rebuild publishes a new Snapshot and readers on
// the old one finish undisturbed.
type Snapshot struct {
	videoID    string
	version    string
	builtAt    time.Time
	dimensions int
	chunks     []*models.Chunk
}

// NewSnapshot builds a snapshot over chunks. All chunk embeddings must share
// one dimensionality. The chunk slice is copied; callers may reuse theirs.
func NewSnapshot(videoID, version string, builtAt time.Time, chunks []*models.Chunk) (*Snapshot, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("snapshot for %s has no chunks", videoID)
	}
	dim := len(chunks[0].Embedding)
	if dim == 0 {
		return nil, fmt.Errorf("snapshot for %s has chunks without embeddings", videoID)
	}
	owned := make([]*models.Chunk, len(chunks))
	for i, ch := range chunks {
		if len(ch.Embedding) != dim {
			return nil, fmt.Errorf("chunk %s dimension mismatch: got %d, expected %d", ch.ID, len(ch.Embedding), dim)
		}
		owned[i] = ch
	}
	return &Snapshot{
		videoID:    videoID,
		version:    version,
		builtAt:    builtAt,
		dimensions: dim,
		chunks:     owned,
	}, nil
}

// Search returns the top-k chunks by inner product (cosine similarity for
// normalized vectors), scores non-increasing, ties broken by ascending chunk
// position so earlier transcript positions win.
func (s *Snapshot) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), s.dimensions)
	}
	if k <= 0 {
		return nil, nil
	}
	hits := make([]Hit, len(s.chunks))
	for i, ch := range s.chunks {
		hits[i] = Hit{Chunk: ch, Score: InnerProduct(query, ch.Embedding)}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.Position < hits[j].Chunk.Position
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// VideoID returns the video this snapshot indexes.
func (s *Snapshot) VideoID() string { return s.videoID }

// Version returns the build version identifier.
func (s *Snapshot) Version() string { return s.version }

// BuiltAt returns when this version was built.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Size returns the number of indexed chunks.
func (s *Snapshot) Size() int { return len(s.chunks) }

// Dimensions returns the embedding dimensionality.
func (s *Snapshot) Dimensions() int { return s.dimensions }

// Chunks returns the ordered chunk list. Callers must not mutate it.
func (s *Snapshot) Chunks() []*models.Chunk { return s.chunks }
