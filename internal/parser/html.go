package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	htmlPageSize             = 5000
	htmlBoundarySearchFraction = 0.3
)

// HTMLParser strips boilerplate chrome, prefers the main content region, and
// paginates on ~5,000-character boundaries that prefer paragraph breaks
// (§4.3). The original source's pager mutated its loop counter mid-scan to
// adjust for a found boundary; this is reimplemented as an explicit
// two-pointer scan (start/end) per the redesign note in §9(c).
type HTMLParser struct{}

func NewHTMLParser() *HTMLParser { return &HTMLParser{} }

func (p *HTMLParser) Label() string { return "html" }

func (p *HTMLParser) Parse(data []byte) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("html: parse: %w", err)
	}

	doc.Find("script, style, noscript, iframe, svg, nav, footer, header, aside, form, input, button, " +
		`[role="banner"], [role="navigation"], [role="contentinfo"]`).Remove()

	title := extractTitle(doc)
	root := selectMainContent(doc)
	text := normalizeWhitespace(blockText(root))

	pages := paginateText(text, htmlPageSize, htmlBoundarySearchFraction)

	res := &Result{Pages: pages, Metadata: map[string]any{"title": title}, Parser: p.Label()}
	res.totals()
	return res, nil
}

func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := strings.TrimSpace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return ""
}

// selectMainContent prefers <main>/<article>/role=main, falling back to <body>.
func selectMainContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range []string{"main", "article", `[role="main"]`} {
		s := doc.Find(sel)
		if s.Length() > 0 {
			return s
		}
	}
	return doc.Find("body")
}

// blockText reconstructs paragraph-bearing text from a DOM subtree by
// inserting sentinel markers around block-level elements before flattening
// to plain text, since goquery's Text() otherwise concatenates all
// descendant text nodes with no separators. The markers are the literal
// characters U+2028 (LINE SEPARATOR, replacing <br>) and U+2029 (PARAGRAPH
// SEPARATOR, appended to each block element), which become "\n" and "\n\n".
func blockText(root *goquery.Selection) string {
	root.Find("br").ReplaceWithHtml(" ")
	root.Find("p, div, li, h1, h2, h3, h4, h5, h6, tr, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})
	raw := root.Text()
	raw = strings.ReplaceAll(raw, " ", "\n\n")
	raw = strings.ReplaceAll(raw, " ", "\n")
	return raw
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blankRun := 0
	for _, line := range lines {
		line = collapseSpaces(strings.TrimSpace(line))
		if line == "" {
			blankRun++
			if blankRun > 1 {
				continue
			}
		} else {
			blankRun = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func collapseSpaces(s string) string {
	var b strings.Builder
	spaceRun := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if !spaceRun {
				b.WriteRune(' ')
			}
			spaceRun = true
			continue
		}
		spaceRun = false
		b.WriteRune(r)
	}
	return b.String()
}

// paginateText splits text into ~pageSize-rune windows, preferring to cut at
// a paragraph break ("\n\n") that falls within the final boundaryFraction of
// the window. Two explicit pointers (start, end) track progress; neither is
// mutated mid-scan by the boundary search itself.
func paginateText(text string, pageSize int, boundaryFraction float64) []Page {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	n := len(runes)

	var pages []Page
	pageNum := 1
	start := 0
	for start < n {
		end := start + pageSize
		if end >= n {
			end = n
		} else if cut, found := findParagraphBoundary(runes, start, end, boundaryFraction, pageSize); found {
			end = cut
		}

		pageText := strings.TrimSpace(string(runes[start:end]))
		if pageText != "" {
			pages = append(pages, Page{PageNumber: pageNum, Text: pageText})
			pageNum++
		}
		start = end
	}
	return pages
}

// findParagraphBoundary looks for the last "\n\n" whose start lies within the
// final boundaryFraction of [start, end). Returns the cut point (just past
// the boundary) and whether one was found.
func findParagraphBoundary(runes []rune, start, end int, boundaryFraction float64, pageSize int) (int, bool) {
	searchFrom := start + int(float64(pageSize)*(1-boundaryFraction))
	if searchFrom < start {
		searchFrom = start
	}
	best := -1
	for i := searchFrom; i < end && i+1 < len(runes); i++ {
		if runes[i] == '\n' && runes[i+1] == '\n' {
			best = i + 2
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}
