// Package chunker implements the sentence-aware semantic chunker (§4.5):
// page-order traversal, sentence splitting, max/min size budgets, and
// character-budget overlap seeding between consecutive chunks. Grounded on
// the teacher's streaming accumulate/flush structure
// (internal/core/ingestion_engine/chunk_extractor.go), generalized from
// token-approximate buffering to sentence/page-provenanced chunks.
package chunker

import (
	"strings"
	"unicode"

	"github.com/markdave123-py/Contexta/internal/parser"
)

// Config tunes the chunker's size budgets (§4.5).
type Config struct {
	MaxChunkSize  int
	MinChunkSize  int
	OverlapSize   int
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{MaxChunkSize: 1000, MinChunkSize: 200, OverlapSize: 100}
}

// ChunkResult is one emitted chunk with page provenance.
type ChunkResult struct {
	Index     int
	Text      string
	PageStart int
	PageEnd   int
	Sentences []string
}

type sentence struct {
	text string
	page int
}

// Chunk processes pages in order and returns contiguous, page-provenanced
// chunks per §4.5's accumulate/emit/overlap-seed algorithm.
func Chunk(pages []parser.Page, cfg Config) []ChunkResult {
	sentences := sentencesFromPages(pages)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []ChunkResult
	var buf []sentence
	bufLen := 0
	index := 0

	emit := func(force bool) {
		if bufLen == 0 || len(buf) == 0 {
			return
		}
		if bufLen < cfg.MinChunkSize && !force {
			return
		}
		chunks = append(chunks, buildChunk(index, buf))
		index++

		buf, bufLen = seedOverlap(buf, cfg.OverlapSize)
	}

	for _, s := range sentences {
		sLen := len(s.text)
		if bufLen > 0 && bufLen+sLen > cfg.MaxChunkSize {
			emit(false)
		}
		buf = append(buf, s)
		bufLen += sLen
	}

	// Final chunk: emitted even under MinChunkSize only when it is the sole
	// chunk produced (§9 open question (a) — a short document should not
	// lose all of its content to a silently dropped tail).
	if bufLen > 0 {
		if bufLen >= cfg.MinChunkSize || len(chunks) == 0 {
			chunks = append(chunks, buildChunk(index, buf))
		}
	}

	return chunks
}

func buildChunk(index int, buf []sentence) ChunkResult {
	texts := make([]string, len(buf))
	pageStart, pageEnd := buf[0].page, buf[0].page
	for i, s := range buf {
		texts[i] = s.text
		if s.page < pageStart {
			pageStart = s.page
		}
		if s.page > pageEnd {
			pageEnd = s.page
		}
	}
	return ChunkResult{
		Index:     index,
		Text:      strings.Join(texts, " "),
		PageStart: pageStart,
		PageEnd:   pageEnd,
		Sentences: texts,
	}
}

// seedOverlap keeps a tail of buf whose cumulative length is <= overlapSize,
// taken from the end, to seed the next chunk.
func seedOverlap(buf []sentence, overlapSize int) ([]sentence, int) {
	if overlapSize <= 0 || len(buf) == 0 {
		return nil, 0
	}
	var kept []sentence
	remain := overlapSize
	for i := len(buf) - 1; i >= 0; i-- {
		if len(buf[i].text) > remain {
			break
		}
		kept = append([]sentence{buf[i]}, kept...)
		remain -= len(buf[i].text)
	}
	total := 0
	for _, s := range kept {
		total += len(s.text)
	}
	return kept, total
}

// sentencesFromPages normalizes each page's text and splits it into
// sentences, tagging each with its source page number.
func sentencesFromPages(pages []parser.Page) []sentence {
	var out []sentence
	for _, p := range pages {
		text := normalize(p.Text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		for _, s := range splitSentences(text) {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			out = append(out, sentence{text: s, page: p.PageNumber})
		}
	}
	return out
}

// normalize collapses runs of 3+ newlines to two and normalizes line endings.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	newlineRun := 0
	for _, r := range text {
		if r == '\n' {
			newlineRun++
			if newlineRun <= 2 {
				b.WriteRune(r)
			}
			continue
		}
		newlineRun = 0
		b.WriteRune(r)
	}
	return b.String()
}

// splitSentences implements the rule: a period/exclamation/question mark
// followed by whitespace then an uppercase letter (including Ä Ö Ü) ends a
// sentence, as does a run of newlines.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0

	isSentenceEnd := func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}

	i := 0
	for i < len(runes) {
		r := runes[i]

		if r == '\n' {
			j := i
			for j < len(runes) && runes[j] == '\n' {
				j++
			}
			if j > i {
				out = append(out, string(runes[start:i]))
				start = j
				i = j
				continue
			}
		}

		if isSentenceEnd(r) {
			// Scan whitespace then check for an uppercase letter.
			j := i + 1
			sawSpace := false
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				sawSpace = true
				j++
			}
			if sawSpace && j < len(runes) && isUpperBoundary(runes[j]) {
				out = append(out, string(runes[start:j]))
				start = j
				i = j
				continue
			}
		}
		i++
	}

	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func isUpperBoundary(r rune) bool {
	if unicode.IsUpper(r) {
		return true
	}
	switch r {
	case 'Ä', 'Ö', 'Ü':
		return true
	}
	return false
}
