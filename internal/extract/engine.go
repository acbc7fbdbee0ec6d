// Package extract turns OCR text and a field contract into typed field
// values by way of a single LLM completion.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docfield/docfield/internal/prompt"
	"github.com/docfield/docfield/internal/providers"
	"github.com/docfield/docfield/internal/types"
)

// Engine drives per-document field extraction against an LLM client.
type Engine struct {
	llm     providers.LLMClient
	timeout time.Duration
	logger  *slog.Logger
}

func NewEngine(llm providers.LLMClient, timeout time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		llm:     llm,
		timeout: timeout,
		logger:  logger.With("component", "extract"),
	}
}

// Extract builds a prompt from the document text and field contract, runs
// one completion, and reconciles the response onto the requested fields.
// promptOverride, when non-empty, replaces the default instruction block.
func (e *Engine) Extract(ctx context.Context, ocrText string, fields []types.FieldSpec, promptOverride string) (map[string]string, error) {
	p, err := prompt.Build(ocrText, fields, promptOverride)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	reqID := uuid.New().String()
	start := time.Now()
	result, err := e.llm.Complete(ctx, &providers.CompletionRequest{
		Prompt:    p,
		Timeout:   e.timeout,
		RequestID: reqID,
	})
	if err != nil {
		return nil, fmt.Errorf("llm completion failed: %w", err)
	}

	decoded, err := DecodeResponse(result.Text)
	if err != nil {
		e.logger.Warn("Discarding unparseable LLM response",
			"request_id", reqID,
			"model", result.ModelUsed,
			"error", err)
		return nil, err
	}

	values := Reconcile(fields, decoded)
	e.logger.Debug("Extraction completed",
		"request_id", reqID,
		"model", result.ModelUsed,
		"fields", len(fields),
		"matched", countNonEmpty(values),
		"duration", time.Since(start))
	return values, nil
}

func countNonEmpty(m map[string]string) int {
	n := 0
	for _, v := range m {
		if v != "" {
			n++
		}
	}
	return n
}
