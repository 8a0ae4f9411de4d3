// Package retriever selects the transcript chunks most relevant to a question.
package retriever

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/indexstore"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Retriever embeds a question, searches the video's latest index, optionally
// blends in a keyword score, and hands back chunks re-ordered by transcript
// position so the synthesized context reads in viewing order.
type Retriever struct {
	embedder embedding.Embedder
	indices  *indexstore.Store
	keywords keyword.KeywordIndex // nil when hybrid scoring is off
	cfg      config.RetrievalConfig
	logger   *zap.Logger
}

// New creates a retriever. Pass a nil keyword index to disable the hybrid
// boost regardless of configuration.
func New(embedder embedding.Embedder, indices *indexstore.Store, keywords keyword.KeywordIndex, cfg config.RetrievalConfig, logger *zap.Logger) *Retriever {
	if !cfg.HybridEnabled {
		keywords = nil
	}
	return &Retriever{
		embedder: embedder,
		indices:  indices,
		keywords: keywords,
		cfg:      cfg,
		logger:   logger,
	}
}

// Retrieve returns up to top_k chunks for question, scored, filtered by
// min_score, and ordered by ascending transcript position.
func (r *Retriever) Retrieve(ctx context.Context, videoID, question string) (*models.RetrievedContext, error) {
	embedded, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	// The embedder may return a slice backed by its cache; normalize a copy.
	queryVec := make([]float32, len(embedded))
	copy(queryVec, embedded)
	utils.NormalizeL2(queryVec)

	// Over-fetch so the min_score filter still leaves top_k candidates
	// when the hybrid boost reshuffles the tail.
	fetch := r.cfg.TopK
	if r.keywords != nil {
		fetch *= 2
	}
	hits, err := r.indices.Search(ctx, videoID, queryVec, fetch)
	if err != nil {
		return nil, err
	}

	scored := make([]*models.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		scored = append(scored, &models.ScoredChunk{Chunk: h.Chunk, Score: h.Score})
	}
	if r.keywords != nil {
		r.boost(ctx, videoID, question, scored)
		sort.SliceStable(scored, func(i, j int) bool {
			if scored[i].Score != scored[j].Score {
				return scored[i].Score > scored[j].Score
			}
			return scored[i].Chunk.Position < scored[j].Chunk.Position
		})
	}

	selected := make([]*models.ScoredChunk, 0, r.cfg.TopK)
	for _, sc := range scored {
		if sc.Score < r.cfg.MinScore {
			continue
		}
		selected = append(selected, sc)
		if len(selected) == r.cfg.TopK {
			break
		}
	}

	// Transcript order, not score order: adjacent chunks read as prose.
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Chunk.Position < selected[j].Chunk.Position
	})

	if r.logger != nil {
		r.logger.Debug("retrieved context",
			zap.String("video_id", videoID),
			zap.Int("candidates", len(hits)),
			zap.Int("selected", len(selected)),
		)
	}
	return &models.RetrievedContext{
		VideoID:  videoID,
		Question: question,
		Chunks:   selected,
	}, nil
}

// boost adds keyword_weight * normalized keyword score to chunks that also
// match the question lexically. Keyword failures degrade to pure vector
// scores.
func (r *Retriever) boost(ctx context.Context, videoID, question string, scored []*models.ScoredChunk) {
	kwHits, err := r.keywords.Search(ctx, videoID, question, r.cfg.TopK*2)
	if err != nil {
		if r.logger != nil {
			r.logger.Warn("keyword search failed", zap.String("video_id", videoID), zap.Error(err))
		}
		return
	}
	if len(kwHits) == 0 {
		return
	}
	max := kwHits[0].Score
	for _, h := range kwHits {
		if h.Score > max {
			max = h.Score
		}
	}
	if max <= 0 {
		return
	}
	byID := make(map[string]float64, len(kwHits))
	for _, h := range kwHits {
		byID[h.ChunkID] = h.Score / max
	}
	for _, sc := range scored {
		if kw, ok := byID[sc.Chunk.ID]; ok {
			sc.Score += r.cfg.KeywordWeight * kw
		}
	}
}
