// Package generation calls the external generative-model provider.
package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kotae/internal/config"
)

// Generator produces answer text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

// NewGenerator creates a generator for the configured provider.
// Supported providers: "openai" (default), "mock".
func NewGenerator(cfg *config.GenerationConfig) (Generator, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIGenerator(cfg)
	case "mock":
		return NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s (supported: openai, mock)", cfg.Provider)
	}
}

// stripFences removes markdown code fences the model sometimes wraps around output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
