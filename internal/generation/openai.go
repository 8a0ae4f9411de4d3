package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/models"
)

// OpenAIGenerator calls an OpenAI-compatible /v1/chat/completions endpoint.
// One bounded retry on transient failure; no retry beyond that.
type OpenAIGenerator struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	limiter     *rate.Limiter
	client      *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewOpenAIGenerator creates a generator for the configured provider endpoint.
func NewOpenAIGenerator(cfg *config.GenerationConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("generation api_key is required for the openai provider")
	}
	return &OpenAIGenerator{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
		limiter:     rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Generate returns the model's answer text for the prompt.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	text, retryable, err := g.generateOnce(ctx, prompt)
	if err == nil {
		return text, nil
	}
	if retryable {
		select {
		case <-ctx.Done():
			return "", models.Wrap(models.KindTimeout, "generation cancelled", ctx.Err())
		case <-time.After(500 * time.Millisecond):
		}
		if text, _, retryErr := g.generateOnce(ctx, prompt); retryErr == nil {
			return text, nil
		}
	}
	return "", models.Wrap(models.KindGenerationProviderError, "generation failed", err)
}

func (g *OpenAIGenerator) generateOnce(ctx context.Context, prompt string) (string, bool, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", false, err
	}

	body, err := json.Marshal(chatRequest{
		Model:       g.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", false, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("generation request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", true, fmt.Errorf("provider status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("provider status %d: %s", resp.StatusCode, respBody)
	}

	var apiResp chatResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", false, fmt.Errorf("parse response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", false, fmt.Errorf("provider returned no choices")
	}
	return stripFences(apiResp.Choices[0].Message.Content), false, nil
}

// Close is a no-op.
func (g *OpenAIGenerator) Close() error {
	return nil
}
