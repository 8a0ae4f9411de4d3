package retriever

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/indexstore"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
)

func buildIndex(t *testing.T, mock embedding.Embedder, kw keyword.KeywordIndex, chunks []models.Chunk) *indexstore.Store {
	t.Helper()
	db, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "retr.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var opts []indexstore.StoreOption
	if kw != nil {
		opts = append(opts, indexstore.WithKeywordIndex(kw))
	}
	store := indexstore.New(mock, db, 30*time.Second, opts...)
	if _, err := store.Build(context.Background(), chunks[0].VideoID, chunks, false); err != nil {
		t.Fatal(err)
	}
	return store
}

func TestRetrieveOrdersByPosition(t *testing.T) {
	mock := embedding.NewMockEmbedder(8)
	chunks := []models.Chunk{
		{ID: "v:0", VideoID: "v", Position: 0, Text: "intro and greetings", TokenCount: 3},
		{ID: "v:1", VideoID: "v", Position: 1, Text: "how to cook rice", TokenCount: 4},
		{ID: "v:2", VideoID: "v", Position: 2, Text: "how to cook rice perfectly", TokenCount: 5},
	}
	store := buildIndex(t, mock, nil, chunks)

	r := New(mock, store, nil, config.RetrievalConfig{TopK: 2, MinScore: -1}, nil)
	rc, err := r.Retrieve(context.Background(), "v", "how to cook rice")
	if err != nil {
		t.Fatal(err)
	}
	if len(rc.Chunks) != 2 {
		t.Fatalf("got %d chunks", len(rc.Chunks))
	}
	// Whatever their score order, output must follow transcript positions.
	for i := 1; i < len(rc.Chunks); i++ {
		if rc.Chunks[i].Chunk.Position <= rc.Chunks[i-1].Chunk.Position {
			t.Errorf("positions out of order: %d then %d",
				rc.Chunks[i-1].Chunk.Position, rc.Chunks[i].Chunk.Position)
		}
	}
	// The exact-match chunk must be among the selected two.
	found := false
	for _, sc := range rc.Chunks {
		if sc.Chunk.ID == "v:1" {
			found = true
		}
	}
	if !found {
		t.Errorf("exact match missing from %+v", rc.Chunks)
	}
}

func TestRetrieveMinScoreFilters(t *testing.T) {
	mock := embedding.NewMockEmbedder(8)
	chunks := []models.Chunk{
		{ID: "v:0", VideoID: "v", Position: 0, Text: "alpha beta gamma", TokenCount: 3},
		{ID: "v:1", VideoID: "v", Position: 1, Text: "delta epsilon zeta", TokenCount: 3},
	}
	store := buildIndex(t, mock, nil, chunks)

	// A threshold above the maximum cosine similarity drops everything.
	r := New(mock, store, nil, config.RetrievalConfig{TopK: 4, MinScore: 1.5}, nil)
	rc, err := r.Retrieve(context.Background(), "v", "alpha beta gamma")
	if err != nil {
		t.Fatal(err)
	}
	if len(rc.Chunks) != 0 {
		t.Errorf("expected empty context, got %+v", rc.Chunks)
	}
}

func TestRetrieveUnknownVideo(t *testing.T) {
	mock := embedding.NewMockEmbedder(8)
	store := buildIndex(t, mock, nil, []models.Chunk{
		{ID: "v:0", VideoID: "v", Position: 0, Text: "something", TokenCount: 1},
	})

	r := New(mock, store, nil, config.RetrievalConfig{TopK: 2, MinScore: 0}, nil)
	_, err := r.Retrieve(context.Background(), "other", "anything")
	if models.KindOf(err) != models.KindNotProcessed {
		t.Errorf("expected not-processed, got %v", err)
	}
}

// cachedEmbedder returns the same backing slice on every Embed call, the way
// a cache hit does.
type cachedEmbedder struct {
	*embedding.MockEmbedder
	vec []float32
}

func (e *cachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vec, nil
}

func TestRetrieveDoesNotMutateEmbedderVector(t *testing.T) {
	mock := embedding.NewMockEmbedder(8)
	store := buildIndex(t, mock, nil, []models.Chunk{
		{ID: "v:0", VideoID: "v", Position: 0, Text: "something", TokenCount: 1},
	})

	cached := &cachedEmbedder{MockEmbedder: mock, vec: []float32{3, 0, 0, 0, 0, 0, 0, 0}}
	r := New(cached, store, nil, config.RetrievalConfig{TopK: 1, MinScore: -1}, nil)
	if _, err := r.Retrieve(context.Background(), "v", "something"); err != nil {
		t.Fatal(err)
	}
	if cached.vec[0] != 3 {
		t.Errorf("retrieve normalized the embedder's own vector: %v", cached.vec)
	}
}

func TestHybridBoostPromotesKeywordMatch(t *testing.T) {
	mock := embedding.NewMockEmbedder(8)
	kw, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer kw.Close()

	chunks := []models.Chunk{
		{ID: "v:0", VideoID: "v", Position: 0, Text: "the quick brown fox", TokenCount: 4},
		{ID: "v:1", VideoID: "v", Position: 1, Text: "jumps over the lazy dog", TokenCount: 5},
	}
	store := buildIndex(t, mock, kw, chunks)

	cfg := config.RetrievalConfig{TopK: 1, MinScore: -10, HybridEnabled: true, KeywordWeight: 5}
	r := New(mock, store, kw, cfg, nil)
	rc, err := r.Retrieve(context.Background(), "v", "lazy dog")
	if err != nil {
		t.Fatal(err)
	}
	if len(rc.Chunks) != 1 || rc.Chunks[0].Chunk.ID != "v:1" {
		t.Errorf("keyword match should win with a large boost, got %+v", rc.Chunks)
	}
}

func TestHybridDisabledIgnoresKeywordIndex(t *testing.T) {
	mock := embedding.NewMockEmbedder(8)
	kw, err := keyword.NewBleveIndex("")
	if err != nil {
		t.Fatal(err)
	}
	defer kw.Close()

	chunks := []models.Chunk{
		{ID: "v:0", VideoID: "v", Position: 0, Text: "pure vector scoring", TokenCount: 3},
	}
	store := buildIndex(t, mock, kw, chunks)

	cfg := config.RetrievalConfig{TopK: 1, MinScore: -10, HybridEnabled: false, KeywordWeight: 5}
	r := New(mock, store, kw, cfg, nil)
	if r.keywords != nil {
		t.Error("keyword index must be dropped when hybrid is disabled")
	}
	rc, err := r.Retrieve(context.Background(), "v", "pure vector scoring")
	if err != nil {
		t.Fatal(err)
	}
	if len(rc.Chunks) != 1 {
		t.Errorf("got %+v", rc.Chunks)
	}
}
