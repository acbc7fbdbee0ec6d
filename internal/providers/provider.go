// Package providers wraps the OCR and LLM black-box collaborators behind
// small interfaces so the pipeline can be exercised with test doubles.
package providers

import (
	"context"
	"time"
)

// LLMClient is the completion interface the extraction engine depends on.
type LLMClient interface {
	// Complete sends a prompt and returns the model's text response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResult, error)

	// Name returns the client identifier (e.g. "openai-compat").
	Name() string
}

// OCRProvider extracts text from a whole document. OCR is always applied to
// the full document, never per-page incrementally.
type OCRProvider interface {
	// Name returns the provider identifier (e.g. "paddleocr-vl").
	Name() string

	// Recognize extracts text from a document.
	Recognize(ctx context.Context, doc []byte, filename string) (*OCRResult, error)
}

// CompletionRequest is a request to an LLM.
type CompletionRequest struct {
	Prompt string

	// Timeout bounds this single call. Zero uses the client default.
	Timeout time.Duration

	// Request tracking
	RequestID string
}

// CompletionResult is the response from an LLM call.
type CompletionResult struct {
	Text string

	// Token counts as reported by the endpoint.
	PromptTokens     int
	CompletionTokens int

	ModelUsed     string
	ExecutionTime time.Duration
	RequestID     string
}

// OCRResult is the response from an OCR provider.
type OCRResult struct {
	// Text is the full-document text, pages joined with the provider's
	// page break marker.
	Text string

	// PageTexts holds per-page text in page order.
	PageTexts []string

	ExecutionTime time.Duration
}
