package parser

import (
	"bytes"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
)

const docxParagraphsPerPage = 50

// DOCXParser extracts raw text via docconv (the teacher's own extraction
// engine) and synthesizes logical pages of 50 paragraphs, since DOCX/DOC
// carry no hard page boundaries (§4.3). A paragraph is text delimited by two
// or more consecutive newlines.
type DOCXParser struct{}

func NewDOCXParser() *DOCXParser { return &DOCXParser{} }

func (p *DOCXParser) Label() string { return "docx" }

func (p *DOCXParser) Parse(data []byte) (*Result, error) {
	body, docMeta, err := convertWordDoc(data)
	if err != nil {
		return nil, fmt.Errorf("docx: %w", err)
	}

	text := strings.TrimSpace(body)
	meta := map[string]any{}
	if len(docMeta) > 0 {
		meta["warnings"] = docMeta
	}

	if text == "" {
		return &Result{Metadata: meta, Parser: p.Label()}, nil
	}

	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		paragraphs = []string{text}
	}

	var pages []Page
	pageNum := 1
	for start := 0; start < len(paragraphs); start += docxParagraphsPerPage {
		end := start + docxParagraphsPerPage
		if end > len(paragraphs) {
			end = len(paragraphs)
		}
		pageText := strings.Join(paragraphs[start:end], "\n\n")
		pages = append(pages, Page{PageNumber: pageNum, Text: pageText})
		pageNum++
	}

	result := &Result{Pages: pages, Metadata: meta, Parser: p.Label()}
	result.totals()
	return result, nil
}

// convertWordDoc dispatches to docconv's dedicated DOCX or legacy DOC
// extractor based on the file's magic bytes: zip-based OOXML ("PK\x03\x04")
// vs. OLE2 compound file ("\xD0\xCF\x11\xE0").
func convertWordDoc(data []byte) (string, map[string]string, error) {
	if isZip(data) {
		return docconv.ConvertDocx(bytes.NewReader(data))
	}
	return docconv.ConvertDoc(bytes.NewReader(data))
}

func isZip(data []byte) bool {
	return len(data) >= 4 && data[0] == 'P' && data[1] == 'K' && data[2] == 0x03 && data[3] == 0x04
}

// splitParagraphs splits text on runs of 2+ newlines, the teacher-compatible
// definition of "paragraph" for formats with no native page boundaries.
func splitParagraphs(text string) []string {
	var out []string
	var cur strings.Builder
	newlineRun := 0

	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for _, r := range text {
		if r == '\n' {
			newlineRun++
			if newlineRun >= 2 {
				flush()
			} else {
				cur.WriteRune(r)
			}
			continue
		}
		newlineRun = 0
		cur.WriteRune(r)
	}
	flush()
	return out
}
