// Package pdffilter decides whether an attachment qualifies for
// harvesting: a PDF type gate followed by an optional full-text
// keyword scan of the extracted PDF content.
package pdffilter

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/tracyhatemice/mailpdf/internal/mailsource"
)

// ExtractFunc returns the plain text of each page of the PDF at path.
type ExtractFunc func(path string) ([]string, error)

// Filter applies the two-stage attachment decision.
type Filter struct {
	extract ExtractFunc
}

// New creates a Filter backed by the default PDF text extractor.
func New() *Filter {
	return &Filter{extract: ExtractPages}
}

// NewWithExtractor creates a Filter with a custom extractor.
func NewWithExtractor(extract ExtractFunc) *Filter {
	return &Filter{extract: extract}
}

// IsPDF is the type gate: the filename contains ".pdf" (matching the
// substring anywhere, not just as a suffix) or the declared media type
// is application/pdf.
func IsPDF(filename, mediaType string) bool {
	if strings.Contains(strings.ToLower(filename), ".pdf") {
		return true
	}
	return strings.EqualFold(mediaType, "application/pdf")
}

// Accept reports whether the attachment qualifies. When keywords is
// empty the keyword gate is skipped and every PDF-typed attachment
// passes. Otherwise the attachment is decoded to a temporary file,
// its text extracted page by page, and any case-insensitive substring
// match of any keyword accepts it. The temporary file is removed on
// every path.
func (f *Filter) Accept(att mailsource.Attachment, keywords []string) (bool, error) {
	if !IsPDF(att.Filename, att.MediaType) {
		return false, nil
	}
	if len(keywords) == 0 {
		return true, nil
	}

	tmp, err := os.CreateTemp("", "mailpdf-*.pdf")
	if err != nil {
		return false, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(att.Data); err != nil {
		tmp.Close()
		return false, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("close temp file: %w", err)
	}

	pages, err := f.extract(tmp.Name())
	if err != nil {
		return false, fmt.Errorf("extract text from %s: %w", att.Filename, err)
	}

	for _, page := range pages {
		text := strings.ToLower(page)
		for _, keyword := range keywords {
			if keyword == "" {
				continue
			}
			if strings.Contains(text, strings.ToLower(keyword)) {
				return true, nil
			}
		}
	}
	return false, nil
}

// ExtractPages reads the PDF at path and returns one plain-text string
// per page.
func ExtractPages(path string) ([]string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
