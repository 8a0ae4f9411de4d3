// Package indexstore owns per-video vector indices: it embeds chunks, builds
// immutable search snapshots, persists them, and coalesces concurrent builds.
package indexstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Store is the only writer of per-video index state. Builds for one video id
// coalesce into a single flight; builds for distinct ids run in parallel.
// Readers always see either the last complete snapshot or none.
type Store struct {
	embedder     embedding.Embedder
	storage      storage.Storage
	keywords     keyword.KeywordIndex // optional; nil disables hybrid boost
	buildTimeout time.Duration
	logger       *zap.Logger

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]*entry
}

// entry is the resident state for one video.
type entry struct {
	snap        *vector.Snapshot
	fingerprint string
}

// BuildResult reports the outcome of a build.
type BuildResult struct {
	ChunkCount int
	Version    string
	Reused     bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithKeywordIndex enables keyword indexing of built chunks for hybrid retrieval.
func WithKeywordIndex(idx keyword.KeywordIndex) StoreOption {
	return func(s *Store) { s.keywords = idx }
}

// WithLogger sets a logger for build events.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// New creates an index store.
func New(embedder embedding.Embedder, store storage.Storage, buildTimeout time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		embedder:     embedder,
		storage:      store,
		buildTimeout: buildTimeout,
		entries:      make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fingerprint returns a stable digest of the chunk texts. Builds with an
// unchanged fingerprint are no-ops.
func Fingerprint(chunks []models.Chunk) string {
	h := sha256.New()
	for _, ch := range chunks {
		h.Write([]byte(ch.Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Build embeds chunks and publishes a new index version for videoID.
// If a complete index with the same fingerprint already exists and force is
// false, the cached result is returned without an embedding pass. Concurrent
// calls for the same id join the in-flight build and share its result; the
// build itself runs detached from any single caller's context so an abandoned
// request still commits for future callers.
func (s *Store) Build(ctx context.Context, videoID string, chunks []models.Chunk, force bool) (*BuildResult, error) {
	if len(chunks) == 0 {
		return nil, models.E(models.KindInvalidRequest, "no chunks to index")
	}
	fp := Fingerprint(chunks)

	if !force {
		if res := s.cached(ctx, videoID, fp); res != nil {
			return res, nil
		}
	}

	ch := s.group.DoChan(videoID, func() (interface{}, error) {
		return s.build(videoID, chunks, fp, force)
	})
	select {
	case <-ctx.Done():
		// The flight keeps running and commits; this caller just stops waiting.
		return nil, models.Wrap(models.KindTimeout, "index build abandoned by caller", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		out := res.Val.(*BuildResult)
		if res.Shared {
			shared := *out
			shared.Reused = true
			return &shared, nil
		}
		return out, nil
	}
}

// cached returns a reuse result when a complete index with fingerprint fp
// already exists, resident or on disk.
func (s *Store) cached(ctx context.Context, videoID, fp string) *BuildResult {
	s.mu.RLock()
	e := s.entries[videoID]
	s.mu.RUnlock()
	if e != nil && e.fingerprint == fp {
		return &BuildResult{ChunkCount: e.snap.Size(), Version: e.snap.Version(), Reused: true}
	}
	if e != nil {
		return nil
	}
	// Warm restart: an unchanged record on disk counts as built.
	meta, err := s.storage.GetIndexMeta(ctx, videoID)
	if err != nil || meta.Fingerprint != fp {
		return nil
	}
	snap, err := s.loadSnapshot(ctx, videoID, meta)
	if err != nil {
		return nil
	}
	return &BuildResult{ChunkCount: snap.Size(), Version: snap.Version(), Reused: true}
}

// build runs one embedding pass and commits the new version. It is only ever
// entered once per flight.
func (s *Store) build(videoID string, chunks []models.Chunk, fp string, force bool) (*BuildResult, error) {
	// Detached from the triggering request: results are committed even if
	// every waiter is gone.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(context.Background()), s.buildTimeout)
	defer cancel()

	if !force {
		if res := s.cached(ctx, videoID, fp); res != nil {
			return res, nil
		}
	}

	start := time.Now()
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	owned := make([]*models.Chunk, len(chunks))
	for i := range chunks {
		ch := chunks[i]
		// The embedder may return slices backed by its cache; normalize a copy.
		vec := make([]float32, len(embeddings[i]))
		copy(vec, embeddings[i])
		utils.NormalizeL2(vec)
		ch.Embedding = vec
		owned[i] = &ch
	}

	meta := &models.IndexMeta{
		VideoID:     videoID,
		Version:     uuid.New().String(),
		Fingerprint: fp,
		ChunkCount:  len(owned),
		Dimensions:  s.embedder.Dimensions(),
		BuiltAt:     time.Now(),
	}
	if err := s.storage.ReplaceIndex(ctx, meta, owned); err != nil {
		return nil, models.Wrap(models.KindInternal, "persist index record", err)
	}
	if s.keywords != nil {
		// Hybrid boost is an enrichment; a keyword indexing failure does not
		// fail the build.
		if err := s.keywords.IndexChunks(ctx, videoID, chunks); err != nil && s.logger != nil {
			s.logger.Warn("keyword indexing failed", zap.String("video_id", videoID), zap.Error(err))
		}
	}

	snap, err := vector.NewSnapshot(videoID, meta.Version, meta.BuiltAt, owned)
	if err != nil {
		return nil, models.Wrap(models.KindInternal, "assemble snapshot", err)
	}
	s.publish(videoID, snap, fp)

	if s.logger != nil {
		s.logger.Info("index built",
			zap.String("video_id", videoID),
			zap.String("version", meta.Version),
			zap.Int("chunks", len(owned)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	return &BuildResult{ChunkCount: len(owned), Version: meta.Version}, nil
}

// publish swaps in a new snapshot. Readers holding the previous snapshot
// finish against it; the swap is the only mutation.
func (s *Store) publish(videoID string, snap *vector.Snapshot, fp string) {
	s.mu.Lock()
	s.entries[videoID] = &entry{snap: snap, fingerprint: fp}
	s.mu.Unlock()
}

// Search returns the top-k chunks for queryVec from the video's latest
// complete snapshot. Fails with NotProcessed when no index exists.
func (s *Store) Search(ctx context.Context, videoID string, queryVec []float32, k int) ([]vector.Hit, error) {
	snap, err := s.snapshot(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return snap.Search(queryVec, k)
}

// snapshot returns the resident snapshot, lazily loading a stored record
// after a restart.
func (s *Store) snapshot(ctx context.Context, videoID string) (*vector.Snapshot, error) {
	s.mu.RLock()
	e := s.entries[videoID]
	s.mu.RUnlock()
	if e != nil {
		return e.snap, nil
	}
	meta, err := s.storage.GetIndexMeta(ctx, videoID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, models.Ef(models.KindNotProcessed, "no index for video %s", videoID)
		}
		return nil, models.Wrap(models.KindInternal, "load index record", err)
	}
	return s.loadSnapshot(ctx, videoID, meta)
}

// loadSnapshot rebuilds a resident snapshot from the stored record.
func (s *Store) loadSnapshot(ctx context.Context, videoID string, meta *models.IndexMeta) (*vector.Snapshot, error) {
	chunks, err := s.storage.GetIndexChunks(ctx, videoID)
	if err != nil {
		return nil, models.Wrap(models.KindInternal, "load index chunks", err)
	}
	snap, err := vector.NewSnapshot(videoID, meta.Version, meta.BuiltAt, chunks)
	if err != nil {
		return nil, models.Wrap(models.KindInternal, "restore snapshot", err)
	}
	s.publish(videoID, snap, meta.Fingerprint)
	return snap, nil
}

// Has reports whether a complete index exists for videoID, resident or stored.
func (s *Store) Has(ctx context.Context, videoID string) bool {
	s.mu.RLock()
	_, ok := s.entries[videoID]
	s.mu.RUnlock()
	if ok {
		return true
	}
	_, err := s.storage.GetIndexMeta(ctx, videoID)
	return err == nil
}

// Meta returns the latest index metadata for videoID.
func (s *Store) Meta(ctx context.Context, videoID string) (*models.IndexMeta, error) {
	s.mu.RLock()
	e := s.entries[videoID]
	s.mu.RUnlock()
	if e != nil {
		return &models.IndexMeta{
			VideoID:     videoID,
			Version:     e.snap.Version(),
			Fingerprint: e.fingerprint,
			ChunkCount:  e.snap.Size(),
			Dimensions:  e.snap.Dimensions(),
			BuiltAt:     e.snap.BuiltAt(),
		}, nil
	}
	meta, err := s.storage.GetIndexMeta(ctx, videoID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, models.Ef(models.KindNotProcessed, "no index for video %s", videoID)
		}
		return nil, err
	}
	return meta, nil
}

// Resident returns the number of snapshots currently in memory.
func (s *Store) Resident() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
