package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/kotae/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testChunks(videoID string, n int) []*models.Chunk {
	chunks := make([]*models.Chunk, n)
	for i := 0; i < n; i++ {
		chunks[i] = &models.Chunk{
			ID:           videoID + ":" + string(rune('0'+i)),
			VideoID:      videoID,
			Position:     i,
			Text:         "chunk text",
			TokenCount:   2,
			StartSegment: i,
			EndSegment:   i,
			Embedding:    []float32{float32(i), 0.5, -1},
		}
	}
	return chunks
}

func TestVideoUpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	v := &models.Video{ID: "vid1", State: models.StateProcessing}
	if err := store.UpsertVideo(ctx, v); err != nil {
		t.Fatal(err)
	}
	v.State = models.StateReady
	v.Summary = "a short summary"
	if err := store.UpsertVideo(ctx, v); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetVideo(ctx, "vid1")
	if err != nil {
		t.Fatal(err)
	}
	if got.State != models.StateReady || got.Summary != "a short summary" {
		t.Errorf("got %+v", got)
	}

	if _, err := store.GetVideo(ctx, "nope"); !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSetSummary(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.UpsertVideo(ctx, &models.Video{ID: "v", State: models.StateReady})
	if err := store.SetSummary(ctx, "v", "bullets"); err != nil {
		t.Fatal(err)
	}
	got, _ := store.GetVideo(ctx, "v")
	if got.Summary != "bullets" {
		t.Errorf("Summary=%q", got.Summary)
	}
	if err := store.SetSummary(ctx, "missing", "x"); !IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestReplaceIndexRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	meta := &models.IndexMeta{
		VideoID: "v", Version: "ver1", Fingerprint: "fp1",
		ChunkCount: 2, Dimensions: 3, BuiltAt: time.Now(),
	}
	if err := store.ReplaceIndex(ctx, meta, testChunks("v", 2)); err != nil {
		t.Fatal(err)
	}

	gotMeta, err := store.GetIndexMeta(ctx, "v")
	if err != nil {
		t.Fatal(err)
	}
	if gotMeta.Version != "ver1" || gotMeta.ChunkCount != 2 {
		t.Errorf("meta %+v", gotMeta)
	}

	chunks, err := store.GetIndexChunks(ctx, "v")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if chunks[1].Position != 1 || chunks[1].Embedding[0] != 1 {
		t.Errorf("chunk %+v emb=%v", chunks[1], chunks[1].Embedding)
	}
}

func TestReplaceIndexSwapsAtomically(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := &models.IndexMeta{VideoID: "v", Version: "v1", Fingerprint: "a", ChunkCount: 3, Dimensions: 3, BuiltAt: time.Now()}
	if err := store.ReplaceIndex(ctx, old, testChunks("v", 3)); err != nil {
		t.Fatal(err)
	}
	fresh := &models.IndexMeta{VideoID: "v", Version: "v2", Fingerprint: "b", ChunkCount: 1, Dimensions: 3, BuiltAt: time.Now()}
	if err := store.ReplaceIndex(ctx, fresh, testChunks("v", 1)); err != nil {
		t.Fatal(err)
	}

	meta, _ := store.GetIndexMeta(ctx, "v")
	if meta.Version != "v2" {
		t.Errorf("Version=%s", meta.Version)
	}
	chunks, _ := store.GetIndexChunks(ctx, "v")
	if len(chunks) != 1 {
		t.Errorf("old chunks must be gone, got %d", len(chunks))
	}
}

func TestReplaceIndexOnFreshPoolConnection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := &models.IndexMeta{VideoID: "v", Version: "v1", Fingerprint: "a", ChunkCount: 3, Dimensions: 3, BuiltAt: time.Now()}
	if err := store.ReplaceIndex(ctx, old, testChunks("v", 3)); err != nil {
		t.Fatal(err)
	}

	// Pin the only connection the pool has opened so far; the rebuild below
	// must succeed on a connection that ran none of the open-time statements.
	conn, err := store.db.Conn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	fresh := &models.IndexMeta{VideoID: "v", Version: "v2", Fingerprint: "b", ChunkCount: 1, Dimensions: 3, BuiltAt: time.Now()}
	if err := store.ReplaceIndex(ctx, fresh, testChunks("v", 1)); err != nil {
		t.Fatalf("rebuild on fresh connection: %v", err)
	}

	meta, _ := store.GetIndexMeta(ctx, "v")
	if meta.Version != "v2" {
		t.Errorf("Version=%s", meta.Version)
	}
	chunks, _ := store.GetIndexChunks(ctx, "v")
	if len(chunks) != 1 {
		t.Errorf("old chunks must be gone, got %d", len(chunks))
	}
}

func TestCounts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.UpsertVideo(ctx, &models.Video{ID: "a", State: models.StateReady})
	_ = store.UpsertVideo(ctx, &models.Video{ID: "b", State: models.StateFailed})
	meta := &models.IndexMeta{VideoID: "a", Version: "v", Fingerprint: "f", ChunkCount: 2, Dimensions: 3, BuiltAt: time.Now()}
	_ = store.ReplaceIndex(ctx, meta, testChunks("a", 2))

	if n, _ := store.CountVideos(ctx); n != 2 {
		t.Errorf("CountVideos=%d", n)
	}
	if n, _ := store.CountChunks(ctx); n != 2 {
		t.Errorf("CountChunks=%d", n)
	}
}

func TestVectorEncodingRoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 3}
	out := decodeVector(encodeVector(in))
	if len(out) != 3 {
		t.Fatalf("len=%d", len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %f != %f", i, in[i], out[i])
		}
	}
}
