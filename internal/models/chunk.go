package models

import "time"

// Chunk is a bounded-length slice of transcript text, the unit of retrieval.
// IDs are stable within a video ("<videoID>:<position>") so rebuilding an
// unchanged transcript produces identical chunks.
type Chunk struct {
	ID           string    `json:"id" db:"chunk_id"`
	VideoID      string    `json:"video_id" db:"video_id"`
	Position     int       `json:"position" db:"chunk_index"`
	Text         string    `json:"text" db:"content"`
	TokenCount   int       `json:"token_count" db:"token_count"`
	StartSegment int       `json:"start_segment" db:"start_segment"`
	EndSegment   int       `json:"end_segment" db:"end_segment"`
	Embedding    []float32 `json:"-" db:"-"`
}

// IndexMeta describes a built per-video index version.
type IndexMeta struct {
	VideoID     string    `json:"video_id"`
	Version     string    `json:"version"`
	Fingerprint string    `json:"fingerprint"`
	ChunkCount  int       `json:"chunk_count"`
	Dimensions  int       `json:"dimensions"`
	BuiltAt     time.Time `json:"built_at"`
}

// ScoredChunk is a chunk with its similarity score for a question.
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievedContext is the ordered set of chunks selected for a question,
// re-ordered by original transcript position before synthesis.
type RetrievedContext struct {
	VideoID  string         `json:"video_id"`
	Question string         `json:"question"`
	Chunks   []*ScoredChunk `json:"chunks"`
}

// TokenCount returns the total token count of all chunks in the context.
func (c *RetrievedContext) TokenCount() int {
	total := 0
	for _, sc := range c.Chunks {
		total += sc.Chunk.TokenCount
	}
	return total
}

// Answer is the synthesized response for a question.
type Answer struct {
	Text           string   `json:"text"`
	SourceChunkIDs []string `json:"source_chunk_ids,omitempty"`
	// Mode is "rag" for retrieval-grounded answers, "summary" for global
	// questions answered from the stored video summary.
	Mode string `json:"mode"`
}
