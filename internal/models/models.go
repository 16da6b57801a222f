// Package models holds the persistent entities of the ingestion core.
package models

import "time"

// DocumentStatus is the lifecycle state of a Document.
type DocumentStatus string

const (
	DocumentActive         DocumentStatus = "active"
	DocumentDeletedPending DocumentStatus = "deleted_pending"
	DocumentDeleted        DocumentStatus = "deleted"
)

// Document is a business-scoped logical file, owning an ordered sequence of versions.
type Document struct {
	ID         string         `db:"id" json:"id"`
	TenantID   string         `db:"tenant_id" json:"tenantId"`
	Title      string         `db:"title" json:"title"`
	Filename   string         `db:"filename" json:"filename"`
	Status     DocumentStatus `db:"status" json:"status"`
	UploaderID string         `db:"uploader_id" json:"uploaderId"`
	Labels     []string       `db:"labels" json:"labels,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updatedAt"`
	DeletedAt  *time.Time     `db:"deleted_at" json:"deletedAt,omitempty"`
}

// DocumentVersion is an immutable snapshot of one upload.
type DocumentVersion struct {
	ID            string    `db:"id" json:"id"`
	DocumentID    string    `db:"document_id" json:"documentId"`
	TenantID      string    `db:"tenant_id" json:"tenantId"`
	VersionNumber int       `db:"version_number" json:"versionNumber"`
	ObjectKey     string    `db:"object_key" json:"objectKey"`
	MimeType      string    `db:"mime_type" json:"mimeType"`
	FileSize      int64     `db:"file_size" json:"fileSize"`
	ContentHash   string    `db:"content_hash" json:"contentHash,omitempty"`
	Materialized  bool      `db:"materialized" json:"materialized"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// JobStatus is the top-level status of an IngestionJob.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobRetryReady JobStatus = "retry_ready"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// JobStage is the sub-status of a non-terminal IngestionJob.
type JobStage string

const (
	StagePendingUpload JobStage = "pending_upload"
	StageUploaded      JobStage = "uploaded"
	StageParsing       JobStage = "parsing"
	StageChunking      JobStage = "chunking"
	StageEmbedding     JobStage = "embedding"
)

// SourceType is the format family of the uploaded file, inferred from filename extension.
type SourceType string

const (
	SourcePDF  SourceType = "pdf"
	SourceDOCX SourceType = "docx"
	SourceTXT  SourceType = "txt"
	SourceCSV  SourceType = "csv"
	SourceXLSX SourceType = "xlsx"
	SourceHTML SourceType = "html"
)

// IngestionJob is the unit advanced by the job state machine.
type IngestionJob struct {
	ID          string         `db:"id" json:"id"`
	TenantID    string         `db:"tenant_id" json:"tenantId"`
	VersionID   string         `db:"version_id" json:"versionId"`
	SourceType  SourceType     `db:"source_type" json:"sourceType"`
	Status      JobStatus      `db:"status" json:"status"`
	Stage       JobStage       `db:"stage" json:"stage"`
	Attempts    int            `db:"attempts" json:"attempts"`
	MaxAttempts int            `db:"max_attempts" json:"maxAttempts"`
	LastError   string         `db:"last_error" json:"lastError,omitempty"`
	ErrorCode   string         `db:"error_code" json:"errorCode,omitempty"`
	Metrics     map[string]any `db:"metrics" json:"metrics,omitempty"`
	StartedAt   *time.Time     `db:"started_at" json:"startedAt,omitempty"`
	CompletedAt *time.Time     `db:"completed_at" json:"completedAt,omitempty"`
	NextRetryAt *time.Time     `db:"next_retry_at" json:"nextRetryAt,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
}

// DocumentPage is one parser-produced page, one per logical page of a version.
type DocumentPage struct {
	VersionID  string `db:"version_id" json:"versionId"`
	PageNumber int    `db:"page_number" json:"pageNumber"`
	Text       string `db:"text" json:"text"`
	CharCount  int    `db:"char_count" json:"charCount"`
}

// DocumentChunk is one chunker-produced, page-provenanced span of text.
type DocumentChunk struct {
	ID         string   `db:"id" json:"id"`
	VersionID  string   `db:"version_id" json:"versionId"`
	ChunkIndex int      `db:"chunk_index" json:"chunkIndex"`
	Text       string   `db:"text" json:"text"`
	PageStart  int      `db:"page_start" json:"pageStart"`
	PageEnd    int      `db:"page_end" json:"pageEnd"`
	Sentences  []string `db:"sentences" json:"sentences"`
}

// ChunkEmbedding is the vector index entry for one chunk.
type ChunkEmbedding struct {
	ChunkID string    `db:"chunk_id" json:"chunkId"`
	Vector  []float32 `db:"vector" json:"-"`
	Model   string    `db:"model" json:"model"`
}

// EventOutbox is a durable pointer to pending work or event emission.
type EventOutbox struct {
	ID          string     `db:"id" json:"id"`
	TenantID    string     `db:"tenant_id" json:"tenantId"`
	EventType   string     `db:"event_type" json:"eventType"`
	Payload     []byte     `db:"payload" json:"payload"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	ProcessedAt *time.Time `db:"processed_at" json:"processedAt,omitempty"`
	Attempts    int        `db:"attempts" json:"attempts"`
	MaxAttempts int        `db:"max_attempts" json:"maxAttempts"`
	LastError   string     `db:"last_error" json:"lastError,omitempty"`
	NextRetryAt time.Time  `db:"next_retry_at" json:"nextRetryAt"`
	LeaseOwner  string     `db:"lease_owner" json:"-"`
	LeaseUntil  *time.Time `db:"lease_until" json:"-"`
}

// IngestionRequestedPayload is the JSON body of a document.ingestion_requested event.
type IngestionRequestedPayload struct {
	VersionID string `json:"versionId"`
	JobID     string `json:"jobId"`
	TenantID  string `json:"tenantId"`
}

// User backs the out-of-scope auth façade (§3): referenced only so every
// ingestion entity above has a mandatory tenant id partition key.
type User struct {
	ID           string    `db:"id" json:"id"`
	TenantID     string    `db:"tenant_id" json:"tenantId"`
	FirstName    string    `db:"first_name" json:"firstName"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}
