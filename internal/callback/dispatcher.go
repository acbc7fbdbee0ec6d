// Package callback delivers task results and OCR artifact notices to the
// caller's webhook endpoints.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

// Dispatcher posts JSON payloads to the configured callback endpoints.
// Delivery is at-least-once within the retry budget; exhausting the budget
// is logged and swallowed so one stuck webhook cannot wedge the pipeline.
type Dispatcher struct {
	baseURL         string
	finalResultPath string
	ocrResultPath   string
	maxRetries      uint
	retryBaseDelay  time.Duration
	client          *http.Client
	logger          *slog.Logger
}

type Option func(*Dispatcher)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.client = c }
}

func NewDispatcher(baseURL, finalResultPath, ocrResultPath string, maxRetries uint, retryBaseDelay, timeout time.Duration, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		baseURL:         baseURL,
		finalResultPath: finalResultPath,
		ocrResultPath:   ocrResultPath,
		maxRetries:      maxRetries,
		retryBaseDelay:  retryBaseDelay,
		client:          &http.Client{Timeout: timeout},
		logger:          logger.With("component", "callback"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// resultPayload is the final-result callback body. Exactly one of Result
// and ErrorMsg is set.
type resultPayload struct {
	TaskNo   string            `json:"taskNo"`
	Result   map[string]string `json:"result,omitempty"`
	ErrorMsg string            `json:"errorMsg,omitempty"`
}

// OCRArtifact pairs a source file with the text artifact minted for it.
type OCRArtifact struct {
	FileID    string `json:"fileId"`
	OCRFileID string `json:"ocrFileId"`
}

type ocrPayload struct {
	TaskNo string        `json:"taskNo"`
	Files  []OCRArtifact `json:"files"`
}

// DeliverResult posts the task's extracted values to the final-result
// endpoint.
func (d *Dispatcher) DeliverResult(ctx context.Context, taskNo string, values map[string]string) {
	d.post(ctx, d.finalResultPath, taskNo, resultPayload{TaskNo: taskNo, Result: values})
}

// DeliverError posts a terminal task failure to the final-result endpoint.
func (d *Dispatcher) DeliverError(ctx context.Context, taskNo string, taskErr error) {
	d.post(ctx, d.finalResultPath, taskNo, resultPayload{TaskNo: taskNo, ErrorMsg: taskErr.Error()})
}

// DeliverOCRArtifacts notifies the caller of freshly minted OCR text
// artifacts so later tasks can reuse them as cache references. Called only
// when at least one file was freshly recognized.
func (d *Dispatcher) DeliverOCRArtifacts(ctx context.Context, taskNo string, artifacts []OCRArtifact) {
	if len(artifacts) == 0 {
		return
	}
	d.post(ctx, d.ocrResultPath, taskNo, ocrPayload{TaskNo: taskNo, Files: artifacts})
}

func (d *Dispatcher) post(ctx context.Context, path, taskNo string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("Failed to encode callback payload", "task", taskNo, "path", path, "error", err)
		return
	}
	url := d.baseURL + path

	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := d.client.Do(req)
			if err != nil {
				return fmt.Errorf("callback request failed: %w", err)
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return fmt.Errorf("callback returned status %d", resp.StatusCode)
			}
			return nil
		},
		retry.Attempts(d.maxRetries),
		retry.Delay(d.retryBaseDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			d.logger.Warn("Callback delivery retry", "task", taskNo, "url", url, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		d.logger.Error("Callback delivery exhausted retries", "task", taskNo, "url", url, "attempts", d.maxRetries, "error", err)
		return
	}
	d.logger.Info("Callback delivered", "task", taskNo, "url", url)
}
