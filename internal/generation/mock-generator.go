package generation

import (
	"context"
	"sync"
)

// MockGenerator is a generator for tests. By default it echoes the prompt,
// so answers contain whatever context was supplied; a fixed response or an
// error can be configured instead.
type MockGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

// NewMockGenerator returns a generator that echoes prompts.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// SetResponse makes Generate return a fixed response instead of echoing.
func (m *MockGenerator) SetResponse(resp string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = resp
}

// SetError makes Generate fail with err.
func (m *MockGenerator) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Prompts returns all prompts seen so far.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Generate implements Generator.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if m.response != "" {
		return m.response, nil
	}
	return prompt, nil
}

// Close is a no-op.
func (m *MockGenerator) Close() error {
	return nil
}
