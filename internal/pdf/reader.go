package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// DefaultPreviewSize bounds the text preview of a template in bytes
const DefaultPreviewSize = 2 * 1024

// Reader extracts page text from in-memory PDF documents
type Reader struct {
	maxTextSize int
}

// NewReader creates a reader whose previews hold at most maxTextSize bytes
func NewReader(maxTextSize int) *Reader {
	if maxTextSize <= 0 {
		maxTextSize = DefaultPreviewSize
	}
	return &Reader{
		maxTextSize: maxTextSize,
	}
}

// Preview returns the page count of data and the beginning of its text
func (r *Reader) Preview(data []byte) (pages int, text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("failed to open PDF: %v", rec)
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, "", fmt.Errorf("failed to open PDF: %w", err)
	}

	return pdfReader.NumPage(), r.extractTextContent(pdfReader), nil
}

// extractTextContent collects page text until the size limit is reached
func (r *Reader) extractTextContent(pdfReader *pdf.Reader) string {
	var builder strings.Builder

	for pageNum := 1; pageNum <= pdfReader.NumPage(); pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		content, err := r.pageText(page)
		if err != nil || strings.TrimSpace(content) == "" {
			continue
		}

		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(content)

		if builder.Len() >= r.maxTextSize {
			break
		}
	}

	return truncate(strings.TrimSpace(builder.String()), r.maxTextSize)
}

// pageText extracts the plain text of one page. Malformed content streams
// can panic inside the parser; such pages are skipped.
func (r *Reader) pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("text extraction failed: %v", rec)
		}
	}()
	return page.GetPlainText(nil)
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
