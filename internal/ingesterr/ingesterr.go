// Package ingesterr defines the closed set of ingestion error codes and the
// classifier that turns raw provider/parser exception text into one of them.
package ingesterr

import "strings"

// Code is one of the stable, UI-mappable error codes a job can terminate or
// retry with.
type Code string

const (
	ExtractionEmpty      Code = "extraction_empty"
	ExtractionLowQuality Code = "extraction_low_quality"
	NeedsOCR             Code = "needs_ocr"
	ParseFailed          Code = "parse_failed"
	ProviderRateLimited  Code = "provider_rate_limited"
	Timeout              Code = "timeout"
	UnsupportedFormat    Code = "unsupported_format"
	FileTooLarge         Code = "file_too_large"
	FileCorrupted        Code = "file_corrupted"
	DocumentDeleted      Code = "document_deleted"
	Internal             Code = "internal"
)

// retryable is the closed mapping from code to retry eligibility (§7).
var retryable = map[Code]bool{
	ProviderRateLimited:  true,
	Timeout:              true,
	Internal:             true,
	ExtractionEmpty:      false,
	ExtractionLowQuality: false,
	NeedsOCR:             false,
	ParseFailed:          false,
	UnsupportedFormat:    false,
	FileTooLarge:         false,
	FileCorrupted:        false,
	DocumentDeleted:      false,
}

// Error is a classified, kind-tagged ingestion failure. It replaces raw
// thrown-exception control flow: every stage returns either a normalized
// result or an *Error.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.Code) + ": " + e.Message
}

// Retryable reports whether a job that failed with this error should be
// scheduled for retry (subject to attempts < max_attempts) or terminated.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	return retryable[e.Code]
}

// New builds a classified error with an explicit code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Classify maps a raw error/exception string to a stable Code by substring
// match, in order. Unknown text defaults to ParseFailed — the classifier is
// total: every input maps to exactly one code.
func Classify(raw string) Code {
	s := strings.ToLower(raw)
	switch {
	case containsAny(s, "rate limit", "429", "too many"):
		return ProviderRateLimited
	case containsAny(s, "timeout", "timed out", "aborted"):
		return Timeout
	case containsAny(s, "invalid pdf", "corrupt", "bad xref"):
		return FileCorrupted
	case containsAny(s, "unsupported", "unknown format", "not supported"):
		return UnsupportedFormat
	case containsAny(s, "too large", "size limit", "memory"):
		return FileTooLarge
	default:
		return ParseFailed
	}
}

// ClassifyErr wraps Classify into a classified *Error, preserving the
// original message for operator visibility.
func ClassifyErr(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: Classify(err.Error()), Message: err.Error()}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
