// Package chunker splits transcript text into overlapping, bounded-length chunks.
package chunker

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/models"
)

// Chunker splits transcripts into chunks of at most maxTokens tokens with
// overlapTokens of shared context between adjacent chunks.
type Chunker struct {
	maxTokens     int
	overlapTokens int
}

// New creates a chunker. A non-positive maxTokens falls back to 120; overlap
// is clamped below maxTokens so chunking always makes forward progress.
func New(maxTokens, overlapTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = 120
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	if overlapTokens >= maxTokens {
		overlapTokens = maxTokens - 1
	}
	return &Chunker{maxTokens: maxTokens, overlapTokens: overlapTokens}
}

// word is a transcript token annotated with the segment it came from.
type word struct {
	text         string
	segment      int
	endsSentence bool
}

// Split chunks the transcript deterministically. Cuts prefer sentence
// boundaries within the token budget and fall back to a hard cut when a
// sentence exceeds it. Every chunk records the segment range it covers so
// positions map back to timestamps.
func (c *Chunker) Split(videoID string, segments []models.TranscriptSegment) []models.Chunk {
	words := flatten(segments)
	if len(words) == 0 {
		return nil
	}

	var chunks []models.Chunk
	start := 0
	for start < len(words) {
		cut := c.cutAt(words, start)
		span := words[start:cut]

		texts := make([]string, len(span))
		for i, w := range span {
			texts[i] = w.text
		}
		chunks = append(chunks, models.Chunk{
			ID:           fmt.Sprintf("%s:%d", videoID, len(chunks)),
			VideoID:      videoID,
			Position:     len(chunks),
			Text:         strings.Join(texts, " "),
			TokenCount:   len(span),
			StartSegment: span[0].segment,
			EndSegment:   span[len(span)-1].segment,
		})

		if cut >= len(words) {
			break
		}
		next := cut - c.overlapTokens
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// cutAt returns the exclusive end index for a chunk starting at start:
// the last sentence boundary within the budget, or a hard cut at the budget
// when no boundary exists.
func (c *Chunker) cutAt(words []word, start int) int {
	limit := start + c.maxTokens
	if limit >= len(words) {
		return len(words)
	}
	for i := limit - 1; i > start; i-- {
		if words[i].endsSentence {
			return i + 1
		}
	}
	return limit
}

func flatten(segments []models.TranscriptSegment) []word {
	var words []word
	for si, seg := range segments {
		for _, w := range strings.Fields(seg.Text) {
			words = append(words, word{
				text:         w,
				segment:      si,
				endsSentence: endsSentence(w),
			})
		}
	}
	return words
}

// endsSentence reports whether w terminates a sentence, ignoring trailing
// quotes and brackets.
func endsSentence(w string) bool {
	w = strings.TrimRight(w, `"')]}`)
	return strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?")
}
