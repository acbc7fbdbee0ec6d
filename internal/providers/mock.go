package providers

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

const (
	MockLLMName = "mock-llm"
	MockOCRName = "mock-ocr"
)

// MockLLMClient is an LLMClient for testing.
type MockLLMClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	// Respond overrides ResponseText when set, computing a response per prompt.
	Respond func(prompt string) (string, error)

	requestCount atomic.Int64
}

// NewMockLLMClient creates a new mock client with sensible defaults.
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{
		Latency:      time.Millisecond,
		ResponseText: "{}",
	}
}

// Name returns the client identifier.
func (c *MockLLMClient) Name() string { return MockLLMName }

// Requests returns how many completions were attempted.
func (c *MockLLMClient) Requests() int64 { return c.requestCount.Load() }

// Complete sends a mock completion request.
func (c *MockLLMClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	if c.ShouldFail {
		return nil, fmt.Errorf("mock llm configured to fail")
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return nil, fmt.Errorf("mock llm failed after %d requests", c.FailAfter)
	}

	select {
	case <-time.After(c.Latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	text := c.ResponseText
	if c.Respond != nil {
		var err error
		text, err = c.Respond(req.Prompt)
		if err != nil {
			return nil, err
		}
	}

	return &CompletionResult{
		Text:             text,
		PromptTokens:     len(req.Prompt) / 4,
		CompletionTokens: len(text) / 4,
		ModelUsed:        "mock",
		ExecutionTime:    time.Since(start),
		RequestID:        fmt.Sprintf("mock-%d", count),
	}, nil
}

// MockOCRProvider is an OCRProvider for testing.
type MockOCRProvider struct {
	Latency    time.Duration
	ShouldFail bool
	// Texts maps filename to recognized text; Text is the fallback.
	Texts map[string]string
	Text  string

	requestCount atomic.Int64
}

// NewMockOCRProvider creates a new mock provider.
func NewMockOCRProvider() *MockOCRProvider {
	return &MockOCRProvider{
		Latency: time.Millisecond,
		Text:    "mock document text",
	}
}

// Name returns the provider identifier.
func (p *MockOCRProvider) Name() string { return MockOCRName }

// Requests returns how many recognitions were attempted.
func (p *MockOCRProvider) Requests() int64 { return p.requestCount.Load() }

// Recognize returns the configured text.
func (p *MockOCRProvider) Recognize(ctx context.Context, doc []byte, filename string) (*OCRResult, error) {
	start := time.Now()
	p.requestCount.Add(1)

	if p.ShouldFail {
		return nil, fmt.Errorf("mock ocr configured to fail")
	}

	select {
	case <-time.After(p.Latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	text := p.Text
	if t, ok := p.Texts[filename]; ok {
		text = t
	}

	return &OCRResult{
		Text:          text,
		PageTexts:     strings.Split(text, PaddleOCRPageBreak),
		ExecutionTime: time.Since(start),
	}, nil
}
