// Package quality implements the post-extraction quality gates (§4.4): a
// page-count-aware heuristic that turns "no usable text came out" into a
// classified, actionable error before the pipeline wastes a chunk/embed pass
// on garbage.
package quality

import (
	"github.com/markdave123-py/Contexta/internal/ingesterr"
	"github.com/markdave123-py/Contexta/internal/parser"
)

const minNonEmptyPageChars = 10

// Report is the computed statistics and verdict for one gate run.
type Report struct {
	TotalChars       int
	PageCount        int
	NonEmptyPages    int
	NonEmptyRatio    float64
	AvgCharsPerPage  float64
	Issues           []string
	Passed           bool
	FailureCode      ingesterr.Code
}

// Evaluate runs the ordered rule set against the normalized page list and
// returns a Report. A non-nil *ingesterr.Error is also returned when the
// pages fail outright (rules 1–2, or 2+ accumulated issues from rules 3–5);
// Evaluate is a pure function of its input, so running it twice on the same
// pages always yields the same verdict (§8 "quality gates idempotence").
func Evaluate(pages []parser.Page) (*Report, *ingesterr.Error) {
	rep := &Report{PageCount: len(pages)}

	for _, p := range pages {
		rep.TotalChars += len(p.Text)
		if len(p.Text) > minNonEmptyPageChars {
			rep.NonEmptyPages++
		}
	}
	if rep.PageCount > 0 {
		rep.NonEmptyRatio = float64(rep.NonEmptyPages) / float64(rep.PageCount)
		rep.AvgCharsPerPage = float64(rep.TotalChars) / float64(rep.PageCount)
	}

	// Rule 1: totally empty.
	if rep.TotalChars == 0 {
		rep.FailureCode = ingesterr.ExtractionEmpty
		return rep, ingesterr.New(ingesterr.ExtractionEmpty, "extraction produced zero characters")
	}

	// Rule 2: likely a scanned document needing OCR.
	if rep.PageCount > 1 && rep.TotalChars < 100 && rep.NonEmptyRatio < 0.3 {
		rep.FailureCode = ingesterr.NeedsOCR
		return rep, ingesterr.New(ingesterr.NeedsOCR, "extraction yielded near-zero text across multiple pages; likely scanned")
	}

	// Rules 3-5 accumulate soft issues.
	minTotal := 20
	if rep.PageCount > 1 {
		minTotal = 50 * rep.PageCount
	}
	if rep.TotalChars < minTotal {
		rep.Issues = append(rep.Issues, "below minimum total character threshold")
	}
	if rep.PageCount > 3 && rep.NonEmptyRatio < 0.5 {
		rep.Issues = append(rep.Issues, "fewer than half of pages carry usable text")
	}
	if rep.PageCount > 5 && rep.AvgCharsPerPage < 20 {
		rep.Issues = append(rep.Issues, "average characters per page below threshold")
	}

	if len(rep.Issues) >= 2 {
		rep.FailureCode = ingesterr.ExtractionLowQuality
		return rep, ingesterr.New(ingesterr.ExtractionLowQuality, "extraction quality too low: multiple issues detected")
	}

	rep.Passed = true
	return rep, nil
}
