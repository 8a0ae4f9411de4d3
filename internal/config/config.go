// Package config provides configuration loading and structs for the kotae server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Synthesis  SynthesisConfig  `yaml:"synthesis"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and keyword index.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// TranscriptConfig holds captions provider settings.
type TranscriptConfig struct {
	BaseURL        string `yaml:"base_url"`
	Language       string `yaml:"language"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	RetryBackoffMS int    `yaml:"retry_backoff_ms"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"` // "openai" or "mock"
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"` // falls back to KOTAE_EMBEDDING_API_KEY
	Model             string  `yaml:"model"`
	Dimensions        int     `yaml:"dimensions"`
	BatchSize         int     `yaml:"batch_size"`
	CacheSize         int     `yaml:"cache_size"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// GenerationConfig holds generative model provider settings.
type GenerationConfig struct {
	Provider          string  `yaml:"provider"` // "openai" or "mock"
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"` // falls back to KOTAE_GENERATION_API_KEY
	Model             string  `yaml:"model"`
	Temperature       float64 `yaml:"temperature"`
	MaxOutputTokens   int     `yaml:"max_output_tokens"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// ChunkingConfig holds transcript chunking settings.
type ChunkingConfig struct {
	MaxChunkTokens int `yaml:"max_chunk_tokens"`
	OverlapTokens  int `yaml:"overlap_tokens"`
}

// RetrievalConfig holds query-time retrieval settings.
type RetrievalConfig struct {
	TopK          int     `yaml:"top_k"`
	MinScore      float64 `yaml:"min_score"`
	HybridEnabled bool    `yaml:"hybrid_enabled"`
	KeywordWeight float64 `yaml:"keyword_weight"`
}

// SynthesisConfig holds prompt budgeting and summary settings.
type SynthesisConfig struct {
	ContextTokenBudget int    `yaml:"context_token_budget"`
	DropPolicy         string `yaml:"drop_policy"` // "score" or "position"
	SummaryEnabled     *bool  `yaml:"summary_enabled"`
	SummaryInputChars  int    `yaml:"summary_input_chars"`
}

// SummaryEnabledOrDefault returns whether process-time summaries are
// generated; defaults to true when unset.
func (s *SynthesisConfig) SummaryEnabledOrDefault() bool {
	if s.SummaryEnabled != nil {
		return *s.SummaryEnabled
	}
	return true
}

// PipelineConfig holds coordinator timeouts and wait policy.
type PipelineConfig struct {
	BuildTimeoutSeconds int `yaml:"build_timeout_seconds"`
	AskTimeoutSeconds   int `yaml:"ask_timeout_seconds"`
	// AskWaitMS bounds how long ask blocks on a video still processing.
	// Zero means return ProcessingInProgress immediately.
	AskWaitMS int `yaml:"ask_wait_ms"`
}

// Load reads and parses the config file at path, expands paths, applies
// defaults, and resolves API keys from the environment when unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)

	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("KOTAE_EMBEDDING_API_KEY")
	}
	if cfg.Generation.APIKey == "" {
		cfg.Generation.APIKey = os.Getenv("KOTAE_GENERATION_API_KEY")
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
