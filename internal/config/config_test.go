package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
storage:
  database_path: ./data/videos.db
retrieval:
  top_k: 8
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port=%d", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("Host default missing: %s", cfg.Server.Host)
	}
	if cfg.Retrieval.TopK != 8 {
		t.Errorf("TopK=%d", cfg.Retrieval.TopK)
	}
	if cfg.Retrieval.MinScore != 0.25 {
		t.Errorf("MinScore default=%f", cfg.Retrieval.MinScore)
	}
	if cfg.Chunking.MaxChunkTokens != 120 || cfg.Chunking.OverlapTokens != 20 {
		t.Errorf("chunking defaults: %+v", cfg.Chunking)
	}
	// "./" paths resolve relative to the config dir.
	want := filepath.Join(dir, "data/videos.db")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("DatabasePath=%s, want %s", cfg.Storage.DatabasePath, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config")
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KOTAE_EMBEDDING_API_KEY", "sk-test")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.APIKey != "sk-test" {
		t.Errorf("APIKey=%s", cfg.Embedding.APIKey)
	}
}

func TestSummaryEnabledDefault(t *testing.T) {
	var s SynthesisConfig
	if !s.SummaryEnabledOrDefault() {
		t.Error("summary should default to enabled")
	}
	f := false
	s.SummaryEnabled = &f
	if s.SummaryEnabledOrDefault() {
		t.Error("explicit false should disable")
	}
}
