package parser

import "strings"

const txtLinesPerPage = 100

// TXTParser decodes UTF-8 text, normalizes CRLF/CR to LF, and synthesizes
// logical pages of 100 lines (§4.3).
type TXTParser struct{}

func NewTXTParser() *TXTParser { return &TXTParser{} }

func (p *TXTParser) Label() string { return "txt" }

func (p *TXTParser) Parse(data []byte) (*Result, error) {
	text := normalizeLineEndings(string(data))
	if text == "" {
		return &Result{Pages: nil, Metadata: map[string]any{}, Parser: p.Label()}, nil
	}

	lines := strings.Split(text, "\n")
	// A trailing empty line from a final newline is not a logical line.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return &Result{Pages: nil, Metadata: map[string]any{}, Parser: p.Label()}, nil
	}

	var pages []Page
	pageNum := 1
	for start := 0; start < len(lines); start += txtLinesPerPage {
		end := start + txtLinesPerPage
		if end > len(lines) {
			end = len(lines)
		}
		pageText := strings.Join(lines[start:end], "\n")
		pages = append(pages, Page{PageNumber: pageNum, Text: pageText})
		pageNum++
	}

	res := &Result{Pages: pages, Metadata: map[string]any{}, Parser: p.Label()}
	res.totals()
	return res, nil
}

func normalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}
