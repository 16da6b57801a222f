package parser

import (
	"fmt"
	"strings"

	"github.com/markdave123-py/Contexta/internal/ingesterr"
	"github.com/markdave123-py/Contexta/internal/models"
)

// Router holds the MIME→parser dispatch table plus the secondary
// sourceType→MIME table (§4.3, §9 "Parser polymorphism"). Adding a format
// means adding one entry to each table — no inheritance needed.
type Router struct {
	byMIME      map[string]Parser
	sourceMIME  map[models.SourceType]string
}

// NewRouter builds the router wired to the six built-in format parsers.
func NewRouter() *Router {
	r := &Router{
		byMIME:     map[string]Parser{},
		sourceMIME: map[models.SourceType]string{},
	}

	register := func(source models.SourceType, canonicalMIME string, p Parser, aliases ...string) {
		r.sourceMIME[source] = canonicalMIME
		r.byMIME[canonicalMIME] = p
		for _, alias := range aliases {
			r.byMIME[alias] = p
		}
	}

	register(models.SourcePDF, "application/pdf", NewPDFParser())
	register(models.SourceDOCX, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", NewDOCXParser(),
		"application/msword")
	register(models.SourceTXT, "text/plain", NewTXTParser())
	register(models.SourceCSV, "text/csv", NewCSVParser())
	register(models.SourceXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", NewXLSXParser(),
		"application/vnd.ms-excel")
	register(models.SourceHTML, "text/html", NewHTMLParser())

	return r
}

// Route dispatches raw bytes to the parser registered for mimeType. If no
// parser is registered directly for the MIME type, it falls back through the
// sourceType→canonical-MIME table before failing with UnsupportedFormat.
func (r *Router) Route(mimeType string, source models.SourceType, data []byte) (*Result, error) {
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))

	if p, ok := r.byMIME[mimeType]; ok {
		return parse(p, data)
	}

	if canonical, ok := r.sourceMIME[source]; ok {
		if p, ok := r.byMIME[canonical]; ok {
			return parse(p, data)
		}
	}

	return nil, ingesterr.New(ingesterr.UnsupportedFormat,
		fmt.Sprintf("no parser for mime=%q source=%q", mimeType, source))
}

func parse(p Parser, data []byte) (*Result, error) {
	res, err := p.Parse(data)
	if err != nil {
		return nil, ingesterr.ClassifyErr(err)
	}
	return res, nil
}
