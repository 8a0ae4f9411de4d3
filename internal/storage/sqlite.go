package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	// foreign_keys is a per-connection pragma; setting it in the DSN applies
	// it to every connection the pool opens, not just the first.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS index_records (
		video_id TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		chunk_count INTEGER NOT NULL,
		dimensions INTEGER NOT NULL,
		built_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS index_chunks (
		video_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		chunk_id TEXT NOT NULL,
		content TEXT NOT NULL,
		token_count INTEGER NOT NULL,
		start_segment INTEGER NOT NULL,
		end_segment INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		PRIMARY KEY (video_id, chunk_index),
		FOREIGN KEY (video_id) REFERENCES index_records(video_id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertVideo inserts or updates a video row.
func (s *SQLiteStorage) UpsertVideo(ctx context.Context, video *models.Video) error {
	video.UpdatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO videos (id, state, summary, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET state=excluded.state, summary=excluded.summary, updated_at=excluded.updated_at`,
		video.ID, string(video.State), video.Summary, video.UpdatedAt,
	)
	return err
}

// GetVideo returns a video by ID.
func (s *SQLiteStorage) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	var v models.Video
	var state string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, state, summary, updated_at FROM videos WHERE id = ?`, id,
	).Scan(&v.ID, &state, &v.Summary, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, NotFound("video")
	}
	if err != nil {
		return nil, err
	}
	v.State = models.VideoState(state)
	return &v, nil
}

// SetSummary stores the process-time summary for a video.
func (s *SQLiteStorage) SetSummary(ctx context.Context, id, summary string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE videos SET summary = ?, updated_at = ? WHERE id = ?`,
		summary, time.Now(), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NotFound("video")
	}
	return nil
}

// ReplaceIndex swaps the video's index record and chunks in one transaction.
func (s *SQLiteStorage) ReplaceIndex(ctx context.Context, meta *models.IndexMeta, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Chunks are deleted explicitly rather than through the cascade so the
	// swap does not depend on connection-level pragma state.
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_chunks WHERE video_id = ?`, meta.VideoID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_records WHERE video_id = ?`, meta.VideoID); err != nil {
		return fmt.Errorf("delete old record: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO index_records (video_id, version, fingerprint, chunk_count, dimensions, built_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		meta.VideoID, meta.Version, meta.Fingerprint, meta.ChunkCount, meta.Dimensions, meta.BuiltAt,
	); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO index_chunks (video_id, chunk_index, chunk_id, content, token_count, start_segment, end_segment, embedding)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, ch := range chunks {
		if _, err := stmt.ExecContext(ctx,
			ch.VideoID, ch.Position, ch.ID, ch.Text, ch.TokenCount,
			ch.StartSegment, ch.EndSegment, encodeVector(ch.Embedding),
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", ch.ID, err)
		}
	}
	return tx.Commit()
}

// GetIndexMeta returns the index record for a video.
func (s *SQLiteStorage) GetIndexMeta(ctx context.Context, videoID string) (*models.IndexMeta, error) {
	var m models.IndexMeta
	err := s.db.QueryRowContext(ctx,
		`SELECT video_id, version, fingerprint, chunk_count, dimensions, built_at
		 FROM index_records WHERE video_id = ?`, videoID,
	).Scan(&m.VideoID, &m.Version, &m.Fingerprint, &m.ChunkCount, &m.Dimensions, &m.BuiltAt)
	if err == sql.ErrNoRows {
		return nil, NotFound("index record")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetIndexChunks returns the stored chunks for a video ordered by position.
func (s *SQLiteStorage) GetIndexChunks(ctx context.Context, videoID string) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id, chunk_index, chunk_id, content, token_count, start_segment, end_segment, embedding
		 FROM index_chunks WHERE video_id = ? ORDER BY chunk_index`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var ch models.Chunk
		var blob []byte
		if err := rows.Scan(&ch.VideoID, &ch.Position, &ch.ID, &ch.Text, &ch.TokenCount,
			&ch.StartSegment, &ch.EndSegment, &blob); err != nil {
			return nil, err
		}
		ch.Embedding = decodeVector(blob)
		chunks = append(chunks, &ch)
	}
	return chunks, rows.Err()
}

// DeleteIndex removes a video's index record and chunks.
func (s *SQLiteStorage) DeleteIndex(ctx context.Context, videoID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM index_chunks WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_records WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return tx.Commit()
}

// CountVideos returns the number of video rows.
func (s *SQLiteStorage) CountVideos(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&n)
	return n, err
}

// CountChunks returns the number of stored index chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM index_chunks`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// encodeVector packs a float32 vector as little-endian bytes.
func encodeVector(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(f))
	}
	return out
}

// decodeVector unpacks a little-endian float32 vector.
func decodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
