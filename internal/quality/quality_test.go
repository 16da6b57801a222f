package quality

import (
	"reflect"
	"testing"

	"github.com/markdave123-py/Contexta/internal/ingesterr"
	"github.com/markdave123-py/Contexta/internal/parser"
)

func TestEvaluate_EmptyExtractionFails(t *testing.T) {
	pages := []parser.Page{{PageNumber: 1, Text: ""}, {PageNumber: 2, Text: ""}}
	rep, err := Evaluate(pages)
	if err == nil {
		t.Fatalf("expected an error for zero-character extraction")
	}
	if err.Code != ingesterr.ExtractionEmpty {
		t.Fatalf("expected %s, got %s", ingesterr.ExtractionEmpty, err.Code)
	}
	if rep.Passed {
		t.Fatalf("expected Passed=false on failure")
	}
	if rep.FailureCode != ingesterr.ExtractionEmpty {
		t.Fatalf("expected FailureCode %s on report, got %s", ingesterr.ExtractionEmpty, rep.FailureCode)
	}
}

func TestEvaluate_NeedsOCR(t *testing.T) {
	pages := []parser.Page{
		{PageNumber: 1, Text: ""},
		{PageNumber: 2, Text: ""},
		{PageNumber: 3, Text: "x"},
	}
	rep, err := Evaluate(pages)
	if err == nil {
		t.Fatalf("expected needs-OCR error")
	}
	if err.Code != ingesterr.NeedsOCR {
		t.Fatalf("expected %s, got %s", ingesterr.NeedsOCR, err.Code)
	}
	if rep.Passed {
		t.Fatalf("expected Passed=false on failure")
	}
}

func TestEvaluate_LowQualityAccumulatesSoftIssues(t *testing.T) {
	// 2 of 6 pages carry a sliver of real text (ratio 0.33, clears the
	// needs-OCR threshold of <0.3) while still tripping the low-total,
	// low-ratio, and low-average soft-issue rules.
	pages := []parser.Page{
		{PageNumber: 1, Text: "a bit of text"},
		{PageNumber: 2, Text: "a bit of text"},
		{PageNumber: 3, Text: ""},
		{PageNumber: 4, Text: ""},
		{PageNumber: 5, Text: ""},
		{PageNumber: 6, Text: ""},
	}
	rep, err := Evaluate(pages)
	if err == nil {
		t.Fatalf("expected low-quality error from accumulated soft issues")
	}
	if err.Code != ingesterr.ExtractionLowQuality {
		t.Fatalf("expected %s, got %s", ingesterr.ExtractionLowQuality, err.Code)
	}
	if len(rep.Issues) < 2 {
		t.Fatalf("expected at least 2 accumulated issues, got %d: %v", len(rep.Issues), rep.Issues)
	}
}

func TestEvaluate_GoodExtractionPasses(t *testing.T) {
	text := "This page carries plenty of real, readable extracted text content for the quality gate to accept without complaint."
	pages := []parser.Page{
		{PageNumber: 1, Text: text},
		{PageNumber: 2, Text: text},
	}
	rep, err := Evaluate(pages)
	if err != nil {
		t.Fatalf("expected no error for a healthy extraction, got %v", err)
	}
	if !rep.Passed {
		t.Fatalf("expected Passed=true, report: %+v", rep)
	}
	if rep.FailureCode != "" {
		t.Fatalf("expected empty FailureCode on a passing report, got %q", rep.FailureCode)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	pages := []parser.Page{
		{PageNumber: 1, Text: "Some reasonable body of extracted text to evaluate repeatedly."},
		{PageNumber: 2, Text: ""},
	}

	rep1, err1 := Evaluate(pages)
	rep2, err2 := Evaluate(pages)

	if (err1 == nil) != (err2 == nil) {
		t.Fatalf("expected repeated evaluation to agree on error presence: %v vs %v", err1, err2)
	}
	if err1 != nil && *err1 != *err2 {
		t.Fatalf("expected identical errors across repeated evaluation, got %+v vs %+v", err1, err2)
	}
	if !reflect.DeepEqual(rep1, rep2) {
		t.Fatalf("expected identical reports across repeated evaluation, got %+v vs %+v", rep1, rep2)
	}
}
