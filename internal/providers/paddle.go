package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

const (
	PaddleOCRName         = "paddleocr-vl"
	PaddleOCRDefaultModel = "PaddleOCR-VL-0.9B"
	PaddleOCRPageBreak    = "\n----- PAGE BREAK -----\n"
)

// PaddleOCRConfig holds configuration for the PaddleOCR-VL serving client.
type PaddleOCRConfig struct {
	ServerURL string
	Model     string
	PageBreak string
	Timeout   time.Duration
}

// PaddleOCRClient implements OCRProvider against a PaddleOCR-VL layout
// parsing server.
type PaddleOCRClient struct {
	serverURL string
	model     string
	pageBreak string
	client    *http.Client
}

// NewPaddleOCRClient creates a new PaddleOCR-VL client.
func NewPaddleOCRClient(cfg PaddleOCRConfig) *PaddleOCRClient {
	if cfg.Model == "" {
		cfg.Model = PaddleOCRDefaultModel
	}
	if cfg.PageBreak == "" {
		cfg.PageBreak = PaddleOCRPageBreak
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	return &PaddleOCRClient{
		serverURL: strings.TrimRight(cfg.ServerURL, "/"),
		model:     cfg.Model,
		pageBreak: cfg.PageBreak,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider identifier.
func (c *PaddleOCRClient) Name() string {
	return PaddleOCRName
}

// PageBreak returns the marker joining page texts in Recognize results.
func (c *PaddleOCRClient) PageBreak() string {
	return c.pageBreak
}

type paddleParseRequest struct {
	File     string `json:"file"`
	FileType int    `json:"fileType"` // 0 = PDF, 1 = image
	Model    string `json:"model,omitempty"`
}

type paddleParseResponse struct {
	ErrorCode int    `json:"errorCode"`
	ErrorMsg  string `json:"errorMsg"`
	Result    struct {
		LayoutParsingResults []struct {
			Markdown struct {
				Text string `json:"text"`
			} `json:"markdown"`
		} `json:"layoutParsingResults"`
	} `json:"result"`
}

// Recognize extracts text from a whole document via the layout-parsing
// endpoint. Pages come back in order and are joined with the page break.
func (c *PaddleOCRClient) Recognize(ctx context.Context, doc []byte, filename string) (*OCRResult, error) {
	start := time.Now()

	fileType := 0
	if ext := strings.ToLower(filepath.Ext(filename)); ext != ".pdf" {
		fileType = 1
	}

	reqBody := paddleParseRequest{
		File:     base64.StdEncoding.EncodeToString(doc),
		FileType: fileType,
		Model:    c.model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/layout-parsing", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read ocr response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ocr server returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed paddleParseResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse ocr response: %w", err)
	}
	if parsed.ErrorCode != 0 {
		return nil, fmt.Errorf("ocr server error %d: %s", parsed.ErrorCode, parsed.ErrorMsg)
	}
	if len(parsed.Result.LayoutParsingResults) == 0 {
		return nil, fmt.Errorf("ocr server returned no pages")
	}

	pages := make([]string, 0, len(parsed.Result.LayoutParsingResults))
	for _, page := range parsed.Result.LayoutParsingResults {
		pages = append(pages, page.Markdown.Text)
	}

	return &OCRResult{
		Text:          strings.Join(pages, c.pageBreak),
		PageTexts:     pages,
		ExecutionTime: time.Since(start),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
