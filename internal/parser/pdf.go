package parser

import (
	"bytes"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
)

// PDFParser runs a structural, page-aware primary extractor
// (github.com/ledongthuc/pdf) and falls back to docconv's layout-based
// pdftotext pipeline when the primary extractor yields no text at all or
// errors outright (§4.3). Both extractors disable external font loading and
// network fetches implicitly — neither library performs network I/O.
type PDFParser struct{}

func NewPDFParser() *PDFParser { return &PDFParser{} }

func (p *PDFParser) Label() string { return "pdf" }

func (p *PDFParser) Parse(data []byte) (*Result, error) {
	pages, ok := parsePDFPrimary(data)
	if ok {
		res := &Result{Pages: pages, Metadata: map[string]any{"variant": "structural"}, Parser: p.Label()}
		res.totals()
		if res.TotalChars > 0 {
			return res, nil
		}
	}

	fallbackPages, err := parsePDFFallback(data)
	if err != nil {
		return nil, err
	}
	res := &Result{Pages: fallbackPages, Metadata: map[string]any{"variant": "layout_fallback"}, Parser: p.Label()}
	res.totals()
	return res, nil
}

// parsePDFPrimary extracts page-bounded text. Individual page failures
// degrade to empty pages rather than aborting the whole document. ok is
// false only when the document cannot be opened as a PDF at all.
func parsePDFPrimary(data []byte) (pages []Page, ok bool) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, false
	}

	total := r.NumPage()
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{PageNumber: i, Text: ""})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, Page{PageNumber: i, Text: ""})
			continue
		}
		pages = append(pages, Page{PageNumber: i, Text: text})
	}
	return pages, true
}

// parsePDFFallback uses docconv's pdftotext-backed layout extraction, which
// emits a single text blob with form-feed (\f) boundary sentinels between
// pages. We re-split on those sentinels to recover a page-oriented result.
func parsePDFFallback(data []byte) ([]Page, error) {
	body, _, err := docconv.ConvertPDF(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	segments := strings.Split(body, "\f")
	var pages []Page
	pageNum := 1
	for _, seg := range segments {
		seg = strings.TrimRight(seg, "\n")
		if len(segments) > 1 && seg == "" {
			// An empty trailing segment after the final sentinel isn't a page.
			continue
		}
		pages = append(pages, Page{PageNumber: pageNum, Text: seg})
		pageNum++
	}
	return pages, nil
}
