// Package services wires the ingestion core's repositories and gateways
// into the thin external HTTP surface (§6). This is the out-of-scope glue
// layer the spec names but does not design; it stays intentionally small.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/Contexta/internal/jobs"
	"github.com/markdave123-py/Contexta/internal/models"
	"github.com/markdave123-py/Contexta/internal/objectstore"
	"github.com/markdave123-py/Contexta/internal/outbox"
	"github.com/markdave123-py/Contexta/internal/repo"
)

const defaultUploadTTL = 15 * time.Minute

// DocumentService implements the upload/versioning protocol (§6) on top of
// the narrow repo interfaces and the object store gateway. Grounded on the
// teacher's DocumentService, generalized from a single-version upload into
// the document/version/job triple the ingestion core requires.
type DocumentService struct {
	docs     repo.Documents
	versions repo.Versions
	jobsRepo repo.Jobs
	outbox   repo.Outbox
	objects  objectstore.Client
}

func NewDocumentService(docs repo.Documents, versions repo.Versions, jobsRepo repo.Jobs, outboxRepo repo.Outbox, objects objectstore.Client) *DocumentService {
	return &DocumentService{docs: docs, versions: versions, jobsRepo: jobsRepo, outbox: outboxRepo, objects: objects}
}

// InitUploadResult is the response shape for the Init Upload operation (§6).
type InitUploadResult struct {
	DocumentID string
	VersionID  string
	JobID      string
	ObjectKey  string
	UploadURL  string
	ExpiresIn  int
}

// InitUpload creates the document, its first version (reserved, unmaterialized),
// and a pending_upload job, then returns a presigned PUT URL for the bytes.
func (s *DocumentService) InitUpload(ctx context.Context, tenantID, uploaderID, title, filename, contentType string) (*InitUploadResult, error) {
	now := time.Now().UTC()

	docID := uuid.NewString()
	doc := &models.Document{
		ID:         docID,
		TenantID:   tenantID,
		Title:      title,
		Filename:   filename,
		Status:     models.DocumentActive,
		UploaderID: uploaderID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("services: create document: %w", err)
	}

	versionID := uuid.NewString()
	const versionNumber = 1 // dense sequence starts at 1 for a new document (§3)
	key := s.objects.GenerateKey(tenantID, docID, versionNumber)
	version := &models.DocumentVersion{
		ID:            versionID,
		DocumentID:    docID,
		TenantID:      tenantID,
		VersionNumber: versionNumber,
		ObjectKey:     key,
		MimeType:      contentType,
		Materialized:  false,
		CreatedAt:     now,
	}
	if err := s.versions.Create(ctx, version); err != nil {
		return nil, fmt.Errorf("services: create version: %w", err)
	}

	source := inferSourceType(filename, contentType)
	job := &models.IngestionJob{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		VersionID:   versionID,
		SourceType:  source,
		Status:      models.JobQueued,
		Stage:       models.StagePendingUpload,
		MaxAttempts: 3,
		CreatedAt:   now,
	}
	if err := s.jobsRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("services: create job: %w", err)
	}

	uploadURL, err := s.objects.GetUploadURL(ctx, key, contentType, defaultUploadTTL)
	if err != nil {
		return nil, fmt.Errorf("services: presign upload: %w", err)
	}

	return &InitUploadResult{
		DocumentID: docID,
		VersionID:  versionID,
		JobID:      job.ID,
		ObjectKey:  key,
		UploadURL:  uploadURL,
		ExpiresIn:  int(defaultUploadTTL.Seconds()),
	}, nil
}

// CompleteUpload attaches the materialized size/hash to the version,
// advances the job pending_upload -> uploaded, and enqueues the
// document.ingestion_requested outbox event (§6).
func (s *DocumentService) CompleteUpload(ctx context.Context, tenantID, versionID string, fileSize int64, contentHash string) error {
	if err := s.versions.MarkMaterialized(ctx, tenantID, versionID, fileSize, contentHash); err != nil {
		return fmt.Errorf("services: mark materialized: %w", err)
	}

	job, err := s.jobsRepo.GetByVersion(ctx, tenantID, versionID)
	if err != nil {
		return fmt.Errorf("services: load job: %w", err)
	}

	res := jobs.Apply(*job, jobs.Input{Event: jobs.EventUploadComplete, Now: time.Now().UTC()})
	job.Status = res.Status
	job.Stage = res.Stage
	job.Attempts = res.Attempts
	job.StartedAt = res.StartedAt
	job.CompletedAt = res.CompletedAt
	job.NextRetryAt = res.NextRetryAt
	job.ErrorCode = res.ErrorCode
	job.LastError = res.LastError
	if err := s.jobsRepo.Save(ctx, job); err != nil {
		return fmt.Errorf("services: save job: %w", err)
	}

	payload := models.IngestionRequestedPayload{VersionID: versionID, JobID: job.ID, TenantID: tenantID}
	if err := s.enqueueIngestionRequested(ctx, tenantID, payload); err != nil {
		return fmt.Errorf("services: enqueue outbox: %w", err)
	}
	return nil
}

func (s *DocumentService) enqueueIngestionRequested(ctx context.Context, tenantID string, payload models.IngestionRequestedPayload) error {
	body, err := json.Marshal(struct {
		Version int                               `json:"version"`
		Type    string                            `json:"type"`
		Payload models.IngestionRequestedPayload `json:"payload"`
	}{Version: 1, Type: "document.ingestion_requested", Payload: payload})
	if err != nil {
		return fmt.Errorf("services: marshal event: %w", err)
	}

	event := &models.EventOutbox{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		EventType:   "document.ingestion_requested",
		Payload:     body,
		CreatedAt:   time.Now().UTC(),
		MaxAttempts: outbox.IngestionEventMaxAttempts,
	}
	return s.outbox.Enqueue(ctx, event)
}

// Get, List, and Delete back the Document CRUD façade (§6).
func (s *DocumentService) Get(ctx context.Context, tenantID, id string) (*models.Document, error) {
	return s.docs.Get(ctx, tenantID, id)
}

func (s *DocumentService) List(ctx context.Context, tenantID string) ([]models.Document, error) {
	return s.docs.List(ctx, tenantID)
}

// Delete marks the document deleted_pending and cancels any non-terminal job
// for the named version; cleanup to deleted happens out-of-band.
func (s *DocumentService) Delete(ctx context.Context, tenantID, id, versionID string) error {
	if err := s.docs.UpdateStatus(ctx, tenantID, id, models.DocumentDeletedPending); err != nil {
		return fmt.Errorf("services: mark deleted_pending: %w", err)
	}
	if versionID == "" {
		return nil
	}
	if err := s.jobsRepo.CancelNonTerminal(ctx, tenantID, versionID); err != nil {
		return fmt.Errorf("services: cancel non-terminal jobs: %w", err)
	}
	return nil
}

// GetJob backs the Job Get operation (§6).
func (s *DocumentService) GetJob(ctx context.Context, tenantID, id string) (*models.IngestionJob, error) {
	return s.jobsRepo.Get(ctx, tenantID, id)
}

// inferSourceType infers the source-type family from the filename extension,
// falling back to the declared content type. This lives on the upload path,
// not inside the parser router, per §4.3.
func inferSourceType(filename, contentType string) models.SourceType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return models.SourcePDF
	case ".docx", ".doc":
		return models.SourceDOCX
	case ".txt":
		return models.SourceTXT
	case ".csv":
		return models.SourceCSV
	case ".xlsx", ".xls":
		return models.SourceXLSX
	case ".html", ".htm":
		return models.SourceHTML
	}

	switch {
	case strings.Contains(contentType, "pdf"):
		return models.SourcePDF
	case strings.Contains(contentType, "wordprocessingml"), strings.Contains(contentType, "msword"):
		return models.SourceDOCX
	case strings.Contains(contentType, "csv"):
		return models.SourceCSV
	case strings.Contains(contentType, "spreadsheetml"), strings.Contains(contentType, "ms-excel"):
		return models.SourceXLSX
	case strings.Contains(contentType, "html"):
		return models.SourceHTML
	default:
		return models.SourceTXT
	}
}
