// Package objectstore is the gateway to S3-compatible object storage (§4.1):
// deterministic key generation, presigned upload/download URLs, and raw byte
// download. Grounded on the teacher's internal/core/object-client, generalized
// from direct-upload to presigned URLs per spec §6.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Client is the object store gateway contract consumed by the rest of the
// ingestion core. Keeping it as an interface (rather than depending on the
// concrete S3Client) lets the coordinator and handlers be tested without AWS.
type Client interface {
	// GenerateKey is a pure function: tenants/{tenant}/docs/{document}/v{version}/original.
	GenerateKey(tenant, document string, version int) string

	// GetUploadURL returns a time-limited PUT URL bound to the exact content type.
	GetUploadURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)

	// GetDownloadURL returns a time-limited GET URL.
	GetDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Download fetches the full object body.
	Download(ctx context.Context, key string) ([]byte, error)

	// DownloadReader streams the object body for large-file processing.
	DownloadReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object (used for cleanup of deleted document versions).
	Delete(ctx context.Context, key string) error
}

// ErrKind classifies object-store failures the coordinator must distinguish
// between retryable transport/auth errors and a terminal not-found.
type ErrKind int

const (
	ErrKindTransient ErrKind = iota
	ErrKindAuth
	ErrKindNotFound
)

// Error wraps an object-store failure with its retry classification.
type Error struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("objectstore: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the coordinator should retry the job after this
// failure. Only not-found is terminal.
func (e *Error) Retryable() bool {
	return e.Kind != ErrKindNotFound
}

// GenerateKey is the shared pure implementation of the deterministic object
// key layout (§6), usable by any Client implementation via embedding or
// direct call.
func GenerateKey(tenant, document string, version int) string {
	return fmt.Sprintf("tenants/%s/docs/%s/v%d/original", tenant, document, version)
}
