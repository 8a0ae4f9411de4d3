// Package transcript retrieves ordered caption segments for a video from the
// captions provider.
package transcript

import (
	"context"
	"regexp"

	"github.com/hyperjump/kotae/internal/models"
)

// Fetcher retrieves the ordered transcript segments for a video.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) ([]models.TranscriptSegment, error)
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidVideoID reports whether id is a well-formed video identifier. Malformed
// ids are rejected before any network call.
func ValidVideoID(id string) bool {
	return videoIDPattern.MatchString(id)
}
