package chunker

import (
	"strings"
	"testing"

	"github.com/markdave123-py/Contexta/internal/parser"
)

func TestChunk_EmptyInput(t *testing.T) {
	if got := Chunk(nil, DefaultConfig()); got != nil {
		t.Fatalf("expected nil chunks for empty input, got %v", got)
	}
}

func TestChunk_ShortDocumentStillEmitsOneChunk(t *testing.T) {
	pages := []parser.Page{{PageNumber: 1, Text: "Short doc. Only one sentence pair here."}}
	chunks := Chunk(pages, DefaultConfig())
	if len(chunks) != 1 {
		t.Fatalf("expected exactly 1 chunk for a short document, got %d", len(chunks))
	}
	if chunks[0].PageStart != 1 || chunks[0].PageEnd != 1 {
		t.Fatalf("unexpected page provenance: %+v", chunks[0])
	}
}

func TestChunk_ContiguousIndicesAndMonotonicPageEnd(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("This is sentence number filler. ")
	}
	pages := []parser.Page{
		{PageNumber: 1, Text: sb.String()},
		{PageNumber: 2, Text: sb.String()},
		{PageNumber: 3, Text: sb.String()},
	}
	cfg := DefaultConfig()
	chunks := Chunk(pages, cfg)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks from a long multi-page document, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("chunk index %d: expected contiguous index %d, got %d", i, i, c.Index)
		}
		if c.PageStart > c.PageEnd {
			t.Fatalf("chunk %d: pageStart %d > pageEnd %d", i, c.PageStart, c.PageEnd)
		}
		if i > 0 && c.PageEnd < chunks[i-1].PageEnd {
			t.Fatalf("chunk %d: pageEnd %d regressed behind previous chunk's pageEnd %d", i, c.PageEnd, chunks[i-1].PageEnd)
		}
	}
}

func TestSplitSentences_PeriodFollowedByUppercase(t *testing.T) {
	got := splitSentences("First sentence. Second sentence. Third one here.")
	if len(got) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %v", len(got), got)
	}
}

func TestSplitSentences_UmlautUppercaseBoundary(t *testing.T) {
	got := splitSentences("Satz eins. Änderung folgt.")
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences across an umlaut boundary, got %d: %v", len(got), got)
	}
}

func TestSplitSentences_NewlineRunBoundary(t *testing.T) {
	got := splitSentences("paragraph one\n\nparagraph two")
	if len(got) != 2 {
		t.Fatalf("expected a newline run to split sentences, got %d: %v", len(got), got)
	}
}

func TestNormalize_CollapsesExcessNewlines(t *testing.T) {
	got := normalize("a\n\n\n\nb")
	if strings.Count(got, "\n") != 2 {
		t.Fatalf("expected newline run collapsed to 2, got %q", got)
	}
}

func TestSeedOverlap_RespectsOverlapBudget(t *testing.T) {
	buf := []sentence{
		{text: strings.Repeat("x", 50), page: 1},
		{text: strings.Repeat("y", 50), page: 1},
		{text: strings.Repeat("z", 50), page: 2},
	}
	kept, total := seedOverlap(buf, 100)
	if len(kept) == 0 {
		t.Fatal("expected some sentences seeded into overlap")
	}
	if total > 100 {
		t.Fatalf("overlap total %d exceeds the overlap budget of 100", total)
	}
	if kept[len(kept)-1].text != buf[len(buf)-1].text {
		t.Fatalf("expected overlap to retain trailing sentences in original order")
	}
}
