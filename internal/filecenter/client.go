// Package filecenter is the HTTP client for the file-retrieval collaborator.
// Documents and OCR artifacts live there; this service only streams them
// through for the lifetime of a task.
package filecenter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// SupportedExts lists the document extensions the pipeline accepts for OCR.
var SupportedExts = map[string]bool{
	"pdf": true, "jpg": true, "jpeg": true, "png": true, "docx": true, "txt": true,
}

// SupportedExt reports whether a filename carries an accepted extension.
func SupportedExt(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return SupportedExts[ext]
}

// ErrNotFound is returned when the file center has no file for an id.
var ErrNotFound = fmt.Errorf("file not found")

// FileInfo describes a stored file.
type FileInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Retries bounds attempts for transient transport failures.
	Retries    uint
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Client talks to the file center.
type Client struct {
	baseURL    string
	retries    uint
	retryDelay time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a new file center client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 3 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type infoResponse struct {
	Datas    []FileInfo `json:"datas"`
	RespCode int        `json:"resp_code"`
	RespMsg  string     `json:"resp_msg"`
}

// GetFilesInfo fetches metadata for a batch of file ids.
func (c *Client) GetFilesInfo(ctx context.Context, fileIDs []string) ([]FileInfo, error) {
	body, err := json.Marshal(map[string][]string{"ids": fileIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ids: %w", err)
	}

	var infos []FileInfo
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files/ids", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("file info request returned status %d", resp.StatusCode)
			}

			var parsed infoResponse
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return err
			}
			if parsed.RespCode != 0 {
				return fmt.Errorf("file center error %d: %s", parsed.RespCode, parsed.RespMsg)
			}
			infos = parsed.Datas
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.Delay(c.retryDelay),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("file info request failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	return infos, nil
}

// Download fetches a file's bytes by id. A 404 maps to ErrNotFound and is
// not retried.
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	var data []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files/"+fileID, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return retry.Unrecoverable(fmt.Errorf("%w: %s", ErrNotFound, fileID))
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("download returned status %d", resp.StatusCode)
			}

			data, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.Delay(c.retryDelay),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("download failed, retrying", "file_id", fileID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", fileID, err)
	}
	return data, nil
}

type uploadResponse struct {
	Datas    FileInfo `json:"datas"`
	RespCode int      `json:"resp_code"`
	RespMsg  string   `json:"resp_msg"`
}

// Upload stores a new file and returns its id. Used to persist freshly
// computed OCR text so callers can reuse it on retry.
func (c *Client) Upload(ctx context.Context, name string, content []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("failed to create upload form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("failed to write upload content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize upload form: %w", err)
	}

	var fileID string
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files/upload", bytes.NewReader(buf.Bytes()))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", mw.FormDataContentType())

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("upload returned status %d", resp.StatusCode)
			}

			var parsed uploadResponse
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				return err
			}
			if parsed.RespCode != 0 {
				return fmt.Errorf("file center error %d: %s", parsed.RespCode, parsed.RespMsg)
			}
			if parsed.Datas.ID == "" {
				return fmt.Errorf("upload response missing file id")
			}
			fileID = parsed.Datas.ID
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.Delay(c.retryDelay),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("upload failed, retrying", "name", name, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return fileID, nil
}
