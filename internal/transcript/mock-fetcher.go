package transcript

import (
	"context"
	"sync"

	"github.com/hyperjump/kotae/internal/models"
)

// MockFetcher is an in-memory fetcher for tests. Videos registered with
// segments fetch successfully; ids registered with an error return it; all
// other well-formed ids return VideoNotFound.
type MockFetcher struct {
	mu       sync.Mutex
	segments map[string][]models.TranscriptSegment
	failures map[string]error
	calls    map[string]int
}

// NewMockFetcher returns an empty mock fetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		segments: make(map[string][]models.TranscriptSegment),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// SetSegments registers segments for a video id.
func (m *MockFetcher) SetSegments(videoID string, segs []models.TranscriptSegment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments[videoID] = segs
}

// SetText registers a single-segment transcript for a video id.
func (m *MockFetcher) SetText(videoID, text string) {
	m.SetSegments(videoID, []models.TranscriptSegment{{Start: 0, Text: text}})
}

// SetError makes fetches for a video id fail with err. A nil err clears a
// previously registered failure.
func (m *MockFetcher) SetError(videoID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, videoID)
		return
	}
	m.failures[videoID] = err
}

// Calls returns how many times videoID was fetched.
func (m *MockFetcher) Calls(videoID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[videoID]
}

// Fetch implements Fetcher.
func (m *MockFetcher) Fetch(ctx context.Context, videoID string) ([]models.TranscriptSegment, error) {
	if !ValidVideoID(videoID) {
		return nil, models.Ef(models.KindVideoNotFound, "malformed video id %q", videoID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[videoID]++
	if err, ok := m.failures[videoID]; ok {
		return nil, err
	}
	if segs, ok := m.segments[videoID]; ok {
		out := make([]models.TranscriptSegment, len(segs))
		copy(out, segs)
		return out, nil
	}
	return nil, models.Ef(models.KindVideoNotFound, "video %s not found", videoID)
}
