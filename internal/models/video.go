// Package models defines core data structures for videos, transcript chunks,
// retrieval context, and answers.
package models

import "time"

// VideoState is the processing state of a video.
type VideoState string

const (
	StateNotProcessed VideoState = "not_processed"
	StateProcessing   VideoState = "processing"
	StateReady        VideoState = "ready"
	StateFailed       VideoState = "failed"
)

// Video tracks per-video processing state and the lightweight summary
// generated at process time.
type Video struct {
	ID        string     `json:"id" db:"id"`
	State     VideoState `json:"state" db:"state"`
	Summary   string     `json:"summary,omitempty" db:"summary"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// TranscriptSegment is one caption entry as returned by the captions
// provider, ordered by start time.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	Text  string  `json:"text"`
}
