// Package keyword provides the Bleve implementation of KeywordIndex.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/hyperjump/kotae/internal/models"
)

// BleveIndex implements KeywordIndex using Bleve. Chunk documents carry a
// video_id keyword field so queries and deletes stay scoped to one video.
type BleveIndex struct {
	index bleve.Index
}

// chunkDoc is the document shape stored in Bleve.
type chunkDoc struct {
	VideoID string `json:"video_id"`
	Content string `json:"content"`
}

func chunkMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so question terms
	// match transcript words exactly.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("video_id", keywordFieldMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path builds
// an in-memory index (tests, ephemeral deployments).
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(chunkMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}
	index, err := bleve.New(path, chunkMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunks replaces the video's keyword documents with the given chunks.
func (b *BleveIndex) IndexChunks(ctx context.Context, videoID string, chunks []models.Chunk) error {
	if err := b.DeleteVideo(ctx, videoID); err != nil {
		return err
	}
	batch := b.index.NewBatch()
	for _, ch := range chunks {
		if err := batch.Index(ch.ID, chunkDoc{VideoID: videoID, Content: ch.Text}); err != nil {
			return fmt.Errorf("batch index chunk %s: %w", ch.ID, err)
		}
	}
	return b.index.Batch(batch)
}

// DeleteVideo removes all keyword documents for a video.
func (b *BleveIndex) DeleteVideo(ctx context.Context, videoID string) error {
	q := bleve.NewTermQuery(videoID)
	q.SetField("video_id")
	req := bleve.NewSearchRequest(q)
	req.Size = 10000
	results, err := b.index.Search(req)
	if err != nil {
		return fmt.Errorf("Bleve delete scan failed: %w", err)
	}
	if len(results.Hits) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, hit := range results.Hits {
		batch.Delete(hit.ID)
	}
	return b.index.Batch(batch)
}

// Search runs a match query over the video's chunks and returns up to limit results.
func (b *BleveIndex) Search(ctx context.Context, videoID, query string, limit int) ([]*KeywordResult, error) {
	match := bleve.NewMatchQuery(query)
	match.SetField("content")
	scope := bleve.NewTermQuery(videoID)
	scope.SetField("video_id")
	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(scope, match))
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{ChunkID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
