// Package pdftext extracts plain text from PDF files.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned when a file does not start with the PDF magic bytes.
var ErrNotPDF = errors.New("file is not a PDF")

var magic = []byte("%PDF-")

// Extractor reads text from PDF files on disk.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// ExtractFile returns the text of every page in order, or "" when the
// document has no extractable text. Parser panics are returned as errors.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (text string, err error) {
	if err := sniff(path); err != nil {
		return "", err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d: %w", i, err)
		}
		b.WriteString(pageText)
	}

	slog.Debug("extracted PDF text", "pages", pages, "chars", b.Len())
	return b.String(), nil
}

func sniff(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	head := make([]byte, 1024)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read file: %w", err)
	}
	// the header may follow a few junk bytes
	if !bytes.Contains(head[:n], magic) {
		return ErrNotPDF
	}
	return nil
}
