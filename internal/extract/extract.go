package extract

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"docqa/internal/domain"
)

// ErrUnsupportedType is returned for file extensions the extractor does not
// handle; the server surfaces it as a client error.
type ErrUnsupportedType struct {
	Ext string
}

func (e *ErrUnsupportedType) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Ext)
}

// FileExtractor converts uploaded files into pages of plain text.
// PDF keeps its page structure; every other supported format becomes a
// single page numbered 1.
type FileExtractor struct {
	tagStrip *regexp.Regexp
}

func NewFileExtractor() *FileExtractor {
	return &FileExtractor{tagStrip: regexp.MustCompile(`<[^>]*>`)}
}

func (e *FileExtractor) Extract(filename string, data []byte) ([]domain.Page, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".md":
		return []domain.Page{{Number: 1, Text: string(data)}}, nil
	case ".html", ".htm":
		return []domain.Page{{Number: 1, Text: e.stripHTML(string(data))}}, nil
	case ".pdf":
		return e.extractPDF(data)
	default:
		return nil, &ErrUnsupportedType{Ext: ext}
	}
}

func (e *FileExtractor) extractPDF(data []byte) ([]domain.Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	var pages []domain.Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			continue
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no extractable text in pdf")
	}
	return pages, nil
}

// stripHTML drops tags and collapses entities enough for chunking; this is
// deliberately not a real HTML parser.
func (e *FileExtractor) stripHTML(s string) string {
	s = e.tagStrip.ReplaceAllString(s, " ")
	replacer := strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`)
	return replacer.Replace(s)
}
