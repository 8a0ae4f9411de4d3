// Package pipeline coordinates processing and question answering per video.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/indexstore"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retriever"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/synthesis"
	"github.com/hyperjump/kotae/internal/transcript"
)

// askPollInterval is how often a bounded-wait ask re-checks a video that is
// still processing.
const askPollInterval = 100 * time.Millisecond

// Coordinator drives the per-video state machine:
// NotProcessed -> Processing -> Ready, Ready -> Processing on force,
// Processing -> Failed on unrecoverable error, Failed -> Processing on retry.
// Video rows in storage are the durable state; concurrent builds for one id
// coalesce inside the index store.
type Coordinator struct {
	fetcher     transcript.Fetcher
	chunker     *chunker.Chunker
	indices     *indexstore.Store
	retriever   *retriever.Retriever
	synthesizer *synthesis.Synthesizer
	storage     storage.Storage
	cfg         config.PipelineConfig
	summaries   bool
	logger      *zap.Logger
}

// ProcessResult reports a completed processing run.
type ProcessResult struct {
	VideoID    string `json:"video_id"`
	ChunkCount int    `json:"chunks"`
	Reused     bool   `json:"reused,omitempty"`
}

// New creates a coordinator.
func New(
	fetcher transcript.Fetcher,
	ch *chunker.Chunker,
	indices *indexstore.Store,
	retr *retriever.Retriever,
	synth *synthesis.Synthesizer,
	store storage.Storage,
	cfg config.PipelineConfig,
	summaries bool,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		fetcher:     fetcher,
		chunker:     ch,
		indices:     indices,
		retriever:   retr,
		synthesizer: synth,
		storage:     store,
		cfg:         cfg,
		summaries:   summaries,
		logger:      logger,
	}
}

// Process fetches the video's transcript, chunks it, and builds the index.
// Unchanged transcripts are a no-op; force rebuilds regardless. Safe to call
// concurrently for one id: the index build runs once and everyone gets its
// result.
func (c *Coordinator) Process(ctx context.Context, videoID string, force bool) (*ProcessResult, error) {
	if !transcript.ValidVideoID(videoID) {
		return nil, models.Ef(models.KindVideoNotFound, "malformed video id %q", videoID)
	}

	prior, err := c.storage.GetVideo(ctx, videoID)
	if err != nil && !storage.IsNotFound(err) {
		return nil, models.Wrap(models.KindInternal, "load video state", err)
	}
	if err := c.setState(ctx, videoID, models.StateProcessing, prior); err != nil {
		return nil, err
	}

	segments, err := c.fetcher.Fetch(ctx, videoID)
	if err != nil {
		return nil, c.fail(ctx, videoID, prior, err)
	}
	chunks := c.chunker.Split(videoID, segments)
	if len(chunks) == 0 {
		return nil, c.fail(ctx, videoID, prior,
			models.Ef(models.KindTranscriptUnavailable, "transcript for %s produced no chunks", videoID))
	}

	res, err := c.indices.Build(ctx, videoID, chunks, force)
	if err != nil {
		return nil, c.fail(ctx, videoID, prior, err)
	}

	summary := ""
	if prior != nil {
		summary = prior.Summary
	}
	if c.summaries && (summary == "" || !res.Reused) {
		// Best effort: a missing summary only disables summary-mode answers.
		if s, serr := c.summarize(ctx, segments); serr == nil {
			summary = s
		} else if c.logger != nil {
			c.logger.Warn("summary generation failed", zap.String("video_id", videoID), zap.Error(serr))
		}
	}

	if err := c.storage.UpsertVideo(ctx, &models.Video{
		ID: videoID, State: models.StateReady, Summary: summary,
	}); err != nil {
		return nil, models.Wrap(models.KindInternal, "persist ready state", err)
	}

	if c.logger != nil {
		c.logger.Info("video processed",
			zap.String("video_id", videoID),
			zap.Int("chunks", res.ChunkCount),
			zap.Bool("reused", res.Reused),
		)
	}
	return &ProcessResult{VideoID: videoID, ChunkCount: res.ChunkCount, Reused: res.Reused}, nil
}

// Ask answers a question about a processed video. Videos still processing are
// waited on for up to ask_wait_ms; the whole call is bounded by
// ask_timeout_seconds.
func (c *Coordinator) Ask(ctx context.Context, videoID, question string) (*models.Answer, error) {
	if !transcript.ValidVideoID(videoID) {
		return nil, models.Ef(models.KindVideoNotFound, "malformed video id %q", videoID)
	}
	if strings.TrimSpace(question) == "" {
		return nil, models.E(models.KindInvalidRequest, "question must not be empty")
	}

	if c.cfg.AskTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.cfg.AskTimeoutSeconds)*time.Second)
		defer cancel()
	}

	video, err := c.awaitReady(ctx, videoID)
	if err != nil {
		return nil, err
	}

	summary := ""
	if video != nil {
		summary = video.Summary
	}
	if summary != "" && synthesis.IsGlobalQuestion(question) {
		return &models.Answer{Text: summary, Mode: synthesis.AnswerModeSummary}, nil
	}

	rc, err := c.retriever.Retrieve(ctx, videoID, question)
	if err != nil {
		return nil, timeoutOr(ctx, err)
	}
	ans, err := c.synthesizer.Synthesize(ctx, question, summary, rc)
	if err != nil {
		return nil, timeoutOr(ctx, err)
	}
	return ans, nil
}

// awaitReady resolves the video's state, waiting out an in-flight build when
// bounded waiting is configured. A stored index record with no ready row
// counts as Ready: the service may have restarted since processing.
func (c *Coordinator) awaitReady(ctx context.Context, videoID string) (*models.Video, error) {
	deadline := time.Now().Add(time.Duration(c.cfg.AskWaitMS) * time.Millisecond)
	for {
		video, err := c.storage.GetVideo(ctx, videoID)
		switch {
		case err != nil && storage.IsNotFound(err):
			if c.indices.Has(ctx, videoID) {
				return nil, nil
			}
			return nil, models.Ef(models.KindNotProcessed, "video %s has not been processed", videoID)
		case err != nil:
			return nil, models.Wrap(models.KindInternal, "load video state", err)
		}

		switch video.State {
		case models.StateReady:
			return video, nil
		case models.StateProcessing:
			if time.Now().After(deadline) {
				return nil, models.Ef(models.KindProcessingInProgress, "video %s is still processing", videoID)
			}
			select {
			case <-ctx.Done():
				return nil, models.Wrap(models.KindTimeout, "ask timed out waiting for processing", ctx.Err())
			case <-time.After(askPollInterval):
			}
		default: // Failed or NotProcessed rows
			if c.indices.Has(ctx, videoID) {
				return video, nil
			}
			return nil, models.Ef(models.KindNotProcessed, "video %s has not been processed", videoID)
		}
	}
}

// summarize joins segments and generates a bounded process-time summary.
func (c *Coordinator) summarize(ctx context.Context, segments []models.TranscriptSegment) (string, error) {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(seg.Text)
		b.WriteString(" ")
	}
	return c.synthesizer.Summarize(ctx, b.String())
}

// setState persists a state transition, preserving any stored summary.
func (c *Coordinator) setState(ctx context.Context, videoID string, state models.VideoState, prior *models.Video) error {
	v := &models.Video{ID: videoID, State: state}
	if prior != nil {
		v.Summary = prior.Summary
	}
	if err := c.storage.UpsertVideo(ctx, v); err != nil {
		return models.Wrap(models.KindInternal, "persist video state", err)
	}
	return nil
}

// fail records the Failed state and passes the cause through.
func (c *Coordinator) fail(ctx context.Context, videoID string, prior *models.Video, cause error) error {
	if err := c.setState(context.WithoutCancel(ctx), videoID, models.StateFailed, prior); err != nil && c.logger != nil {
		c.logger.Error("persist failed state", zap.String("video_id", videoID), zap.Error(err))
	}
	return cause
}

// timeoutOr converts a context deadline into a Timeout kind, leaving other
// errors untouched.
func timeoutOr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return models.Wrap(models.KindTimeout, "ask timed out", err)
	}
	return err
}
