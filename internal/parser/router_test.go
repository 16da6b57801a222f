package parser

import (
	"testing"

	"github.com/markdave123-py/Contexta/internal/ingesterr"
	"github.com/markdave123-py/Contexta/internal/models"
)

func TestRoute_DispatchesByCanonicalMIME(t *testing.T) {
	r := NewRouter()

	cases := []struct {
		name   string
		mime   string
		source models.SourceType
	}{
		{"pdf", "application/pdf", models.SourcePDF},
		{"docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", models.SourceDOCX},
		{"legacy doc alias", "application/msword", models.SourceDOCX},
		{"txt", "text/plain", models.SourceTXT},
		{"csv", "text/csv", models.SourceCSV},
		{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", models.SourceXLSX},
		{"legacy xls alias", "application/vnd.ms-excel", models.SourceXLSX},
		{"html", "text/html", models.SourceHTML},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, ok := r.byMIME[c.mime]; !ok {
				t.Fatalf("no parser registered for mime %q", c.mime)
			}
			_, err := r.Route(c.mime, c.source, []byte("x"))
			if err != nil {
				if classified, ok := err.(*ingesterr.Error); ok && classified.Code == ingesterr.UnsupportedFormat {
					t.Fatalf("mime %q unexpectedly routed as unsupported", c.mime)
				}
			}
		})
	}
}

func TestRoute_CaseAndWhitespaceInsensitive(t *testing.T) {
	r := NewRouter()
	if _, ok := r.byMIME["text/plain"]; !ok {
		t.Fatalf("expected text/plain registered")
	}
	_, err := r.Route("  TEXT/PLAIN  ", models.SourceTXT, []byte("hello"))
	if err != nil {
		if classified, ok := err.(*ingesterr.Error); ok && classified.Code == ingesterr.UnsupportedFormat {
			t.Fatalf("expected mixed-case/padded mime to still route, got unsupported_format")
		}
	}
}

func TestRoute_FallsBackToSourceTypeWhenMIMEUnknown(t *testing.T) {
	r := NewRouter()
	_, err := r.Route("application/octet-stream", models.SourceTXT, []byte("hello"))
	if err != nil {
		if classified, ok := err.(*ingesterr.Error); ok && classified.Code == ingesterr.UnsupportedFormat {
			t.Fatalf("expected sourceType fallback to resolve a parser for %s, got unsupported_format", models.SourceTXT)
		}
	}
}

func TestRoute_UnknownMIMEAndSourceIsUnsupported(t *testing.T) {
	r := NewRouter()
	_, err := r.Route("application/x-nonexistent", models.SourceType("unknown"), []byte("x"))
	if err == nil {
		t.Fatalf("expected UnsupportedFormat error for an unregistered mime/source pair")
	}
	classified, ok := err.(*ingesterr.Error)
	if !ok {
		t.Fatalf("expected *ingesterr.Error, got %T", err)
	}
	if classified.Code != ingesterr.UnsupportedFormat {
		t.Fatalf("expected %s, got %s", ingesterr.UnsupportedFormat, classified.Code)
	}
}
