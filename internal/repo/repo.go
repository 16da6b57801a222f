// Package repo declares the persistence interfaces C9 and the dispatcher
// depend on, kept separate from any specific driver (§4.10). The teacher's
// DbClient interface (internal/core/database/dbclient.go) bundled every
// operation into one fat interface; here each aggregate gets its own
// narrow interface so a pure in-memory fake can stand in for tests without
// implementing unrelated methods.
package repo

import (
	"context"
	"time"

	"github.com/markdave123-py/Contexta/internal/models"
)

// Documents persists Document aggregates.
type Documents interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, tenantID, id string) (*models.Document, error)
	List(ctx context.Context, tenantID string) ([]models.Document, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status models.DocumentStatus) error
}

// Versions persists DocumentVersion rows.
type Versions interface {
	Create(ctx context.Context, v *models.DocumentVersion) error
	Get(ctx context.Context, tenantID, id string) (*models.DocumentVersion, error)
	MarkMaterialized(ctx context.Context, tenantID, id string, fileSize int64, contentHash string) error
}

// Jobs persists IngestionJob rows and supports the state-machine's apply step.
type Jobs interface {
	Create(ctx context.Context, job *models.IngestionJob) error
	Get(ctx context.Context, tenantID, id string) (*models.IngestionJob, error)
	GetByVersion(ctx context.Context, tenantID, versionID string) (*models.IngestionJob, error)
	Save(ctx context.Context, job *models.IngestionJob) error
	CancelNonTerminal(ctx context.Context, tenantID, versionID string) error
}

// Pages persists the per-version parsed page set, idempotently.
type Pages interface {
	ReplaceAll(ctx context.Context, versionID string, pages []models.DocumentPage) error
	ListByVersion(ctx context.Context, versionID string) ([]models.DocumentPage, error)
}

// Chunks persists the per-version chunk set, idempotently.
type Chunks interface {
	ReplaceAll(ctx context.Context, versionID string, chunks []models.DocumentChunk) error
	ListByVersion(ctx context.Context, versionID string) ([]models.DocumentChunk, error)
}

// Embeddings persists the per-chunk vector set, idempotently, and backs the
// pgvector similarity search used by citation retrieval.
type Embeddings interface {
	ReplaceAllForVersion(ctx context.Context, versionID string, embeddings []models.ChunkEmbedding) error
	SearchSimilar(ctx context.Context, versionID string, query []float32, k int) ([]models.DocumentChunk, error)
}

// Outbox is the durable event queue C8 leases against.
type Outbox interface {
	Enqueue(ctx context.Context, event *models.EventOutbox) error
	LeaseBatch(ctx context.Context, owner string, leaseFor time.Duration, limit int) ([]models.EventOutbox, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string, nextRetryAt time.Time) error
}

// Users backs the out-of-scope auth façade (§3): kept thin since it is not
// a designed ingestion component, only a source of tenant context.
type Users interface {
	Create(ctx context.Context, u *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Repositories bundles every narrow interface the application wires up.
type Repositories struct {
	Documents  Documents
	Versions   Versions
	Jobs       Jobs
	Pages      Pages
	Chunks     Chunks
	Embeddings Embeddings
	Outbox     Outbox
	Users      Users
}
