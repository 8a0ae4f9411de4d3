package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// HTTPFetcher fetches captions from a timedtext-style endpoint.
type HTTPFetcher struct {
	baseURL    string
	language   string
	maxRetries int
	backoff    time.Duration
	client     *http.Client
}

// NewHTTPFetcher creates a fetcher for the configured captions provider.
func NewHTTPFetcher(cfg *config.TranscriptConfig) *HTTPFetcher {
	return &HTTPFetcher{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		language:   cfg.Language,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// timedtextResponse is the provider's json3 caption payload.
type timedtextResponse struct {
	Events []struct {
		TStartMS int64 `json:"tStartMs"`
		Segs     []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

// Fetch returns the ordered transcript segments for videoID.
// Malformed ids and provider 404s map to VideoNotFound; a valid video without
// captions maps to TranscriptUnavailable. Transient failures (network, 5xx)
// are retried with exponential backoff before surfacing.
func (f *HTTPFetcher) Fetch(ctx context.Context, videoID string) ([]models.TranscriptSegment, error) {
	if !ValidVideoID(videoID) {
		return nil, models.Ef(models.KindVideoNotFound, "malformed video id %q", videoID)
	}

	endpoint := fmt.Sprintf("%s/api/timedtext?%s", f.baseURL, url.Values{
		"v":    {videoID},
		"lang": {f.language},
		"fmt":  {"json3"},
	}.Encode())

	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, models.Wrap(models.KindTimeout, "transcript fetch cancelled", ctx.Err())
			case <-time.After(f.backoff * time.Duration(1<<(attempt-1))):
			}
		}
		segments, retryable, err := f.fetchOnce(ctx, endpoint, videoID)
		if err == nil {
			return segments, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, models.Wrap(models.KindTranscriptUnavailable, "captions provider unreachable", lastErr)
}

// fetchOnce performs a single request. The second return value reports
// whether the failure is transient and worth retrying.
func (f *HTTPFetcher) fetchOnce(ctx context.Context, endpoint, videoID string) ([]models.TranscriptSegment, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, models.Wrap(models.KindInternal, "build transcript request", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("transcript request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, models.Ef(models.KindVideoNotFound, "video %s not found", videoID)
	case resp.StatusCode == http.StatusForbidden:
		return nil, false, models.Ef(models.KindTranscriptUnavailable, "captions for %s are private or disabled", videoID)
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("captions provider status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, models.Ef(models.KindTranscriptUnavailable, "captions provider status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read captions body: %w", err)
	}
	// The provider answers 200 with an empty body when no caption track exists.
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, false, models.Ef(models.KindTranscriptUnavailable, "no captions for video %s", videoID)
	}

	var payload timedtextResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false, models.Wrap(models.KindTranscriptUnavailable, "malformed captions payload", err)
	}

	segments := make([]models.TranscriptSegment, 0, len(payload.Events))
	for _, ev := range payload.Events {
		var b strings.Builder
		for _, seg := range ev.Segs {
			b.WriteString(seg.UTF8)
		}
		text := utils.CollapseSpaces(b.String())
		if text == "" {
			continue
		}
		segments = append(segments, models.TranscriptSegment{
			Start: float64(ev.TStartMS) / 1000.0,
			Text:  text,
		})
	}
	if len(segments) == 0 {
		return nil, false, models.Ef(models.KindTranscriptUnavailable, "empty caption track for video %s", videoID)
	}
	return segments, false, nil
}
