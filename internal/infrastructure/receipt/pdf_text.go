// Package receipt reads the contents of uploaded receipt files.
package receipt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// DefaultMaxPages bounds how many pages are read from one document
const DefaultMaxPages = 3

// PDFTextExtractor extracts the text layer of PDF receipts with mupdf
type PDFTextExtractor struct {
	maxPages int
	logger   *zap.Logger
}

// NewPDFTextExtractor creates an extractor reading at most maxPages pages.
// maxPages <= 0 uses DefaultMaxPages.
func NewPDFTextExtractor(maxPages int, logger *zap.Logger) *PDFTextExtractor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &PDFTextExtractor{maxPages: maxPages, logger: logger}
}

// ExtractText returns the text of the first pages of a PDF.
// Other file types yield ("", nil).
func (e *PDFTextExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "", nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("PDF file not found: %w", err)
	}

	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages > e.maxPages {
		pages = e.maxPages
	}

	var b strings.Builder
	for pageNum := 0; pageNum < pages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := doc.Text(pageNum)
		if err != nil {
			e.logger.Warn("Failed to extract page text",
				zap.String("path", path),
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		b.WriteString(strings.TrimSpace(text))
		b.WriteString("\n")
	}

	e.logger.Debug("Extracted receipt text", zap.String("path", path), zap.Int("pages", pages), zap.Int("chars", b.Len()))
	return strings.TrimSpace(b.String()), nil
}

var _ port.ReceiptTextExtractor = (*PDFTextExtractor)(nil)
