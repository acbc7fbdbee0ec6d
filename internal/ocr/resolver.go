// Package ocr resolves per-file OCR text, reusing caller-supplied artifacts
// when possible and minting new ones after a fresh run.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/docfield/docfield/internal/filecenter"
	"github.com/docfield/docfield/internal/providers"
)

// FileStore is the slice of the file center the resolver needs.
type FileStore interface {
	GetFilesInfo(ctx context.Context, fileIDs []string) ([]filecenter.FileInfo, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	Upload(ctx context.Context, name string, content []byte) (string, error)
}

// Resolution is the outcome of resolving one file's OCR text.
type Resolution struct {
	// OCRFileID is the artifact id: echoed on cache hit, minted on miss.
	OCRFileID string
	// Text is the full-document OCR text.
	Text string
	// Fresh marks text computed (and uploaded) during this resolution.
	Fresh bool
	// Pages is the PDF page count, zero for other formats.
	Pages int
}

// Resolver decides per file whether to reuse a cached OCR artifact or run
// OCR on the source document.
type Resolver struct {
	files    FileStore
	provider providers.OCRProvider
	logger   *slog.Logger
}

// NewResolver creates a resolver over the given collaborators.
func NewResolver(files FileStore, provider providers.OCRProvider, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{files: files, provider: provider, logger: logger}
}

// Resolve returns the OCR text for one file.
//
// A cache hit (non-empty ocrFileId) only ever fetches the cached artifact:
// a transient retrieval failure is this file's error, never a reason to
// re-run OCR. A cache miss downloads the source document, runs OCR once on
// the whole document, and uploads the text as a new artifact.
func (r *Resolver) Resolve(ctx context.Context, fileID, ocrFileID string) (*Resolution, error) {
	if ocrFileID != "" {
		text, err := r.files.Download(ctx, ocrFileID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch cached ocr artifact %s: %w", ocrFileID, err)
		}
		r.logger.Debug("ocr cache hit", "file_id", fileID, "ocr_file_id", ocrFileID)
		return &Resolution{OCRFileID: ocrFileID, Text: string(text)}, nil
	}

	infos, err := r.files.GetFilesInfo(ctx, []string{fileID})
	if err != nil {
		return nil, fmt.Errorf("failed to look up file %s: %w", fileID, err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: %s", filecenter.ErrNotFound, fileID)
	}
	name := infos[0].Name

	if !filecenter.SupportedExt(name) {
		return nil, fmt.Errorf("unsupported file type %q for %s", filepath.Ext(name), fileID)
	}

	doc, err := r.files.Download(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document %s: %w", fileID, err)
	}

	pages := 0
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		pages, err = api.PageCount(bytes.NewReader(doc), nil)
		if err != nil {
			return nil, fmt.Errorf("invalid pdf %s: %w", fileID, err)
		}
	}

	res, err := r.provider.Recognize(ctx, doc, name)
	if err != nil {
		return nil, fmt.Errorf("ocr failed for %s: %w", fileID, err)
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil, fmt.Errorf("ocr produced no text for %s", fileID)
	}

	artifactName := fileID + "_ocr.txt"
	artifactID, err := r.files.Upload(ctx, artifactName, []byte(res.Text))
	if err != nil {
		return nil, fmt.Errorf("failed to store ocr artifact for %s: %w", fileID, err)
	}

	r.logger.Info("ocr artifact minted",
		"file_id", fileID,
		"ocr_file_id", artifactID,
		"pages", pages,
		"chars", len(res.Text),
	)

	return &Resolution{
		OCRFileID: artifactID,
		Text:      res.Text,
		Fresh:     true,
		Pages:     pages,
	}, nil
}
