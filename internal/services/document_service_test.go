package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/markdave123-py/Contexta/internal/models"
)

type fakeDocs struct{ docs map[string]models.Document }

func (f *fakeDocs) Create(ctx context.Context, doc *models.Document) error {
	f.docs[doc.ID] = *doc
	return nil
}
func (f *fakeDocs) Get(ctx context.Context, tenantID, id string) (*models.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}
func (f *fakeDocs) List(ctx context.Context, tenantID string) ([]models.Document, error) {
	var out []models.Document
	for _, d := range f.docs {
		if d.TenantID == tenantID {
			out = append(out, d)
		}
	}
	return out, nil
}
func (f *fakeDocs) UpdateStatus(ctx context.Context, tenantID, id string, status models.DocumentStatus) error {
	d := f.docs[id]
	d.Status = status
	f.docs[id] = d
	return nil
}

type fakeVersionsSvc struct{ versions map[string]models.DocumentVersion }

func (f *fakeVersionsSvc) Create(ctx context.Context, v *models.DocumentVersion) error {
	f.versions[v.ID] = *v
	return nil
}
func (f *fakeVersionsSvc) Get(ctx context.Context, tenantID, id string) (*models.DocumentVersion, error) {
	v, ok := f.versions[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}
func (f *fakeVersionsSvc) MarkMaterialized(ctx context.Context, tenantID, id string, fileSize int64, contentHash string) error {
	v := f.versions[id]
	v.FileSize = fileSize
	v.ContentHash = contentHash
	v.Materialized = true
	f.versions[id] = v
	return nil
}

type fakeJobsSvc struct{ jobs map[string]models.IngestionJob }

func (f *fakeJobsSvc) Create(ctx context.Context, job *models.IngestionJob) error {
	f.jobs[job.ID] = *job
	return nil
}
func (f *fakeJobsSvc) Get(ctx context.Context, tenantID, id string) (*models.IngestionJob, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}
func (f *fakeJobsSvc) GetByVersion(ctx context.Context, tenantID, versionID string) (*models.IngestionJob, error) {
	for _, j := range f.jobs {
		if j.VersionID == versionID {
			jj := j
			return &jj, nil
		}
	}
	return nil, nil
}
func (f *fakeJobsSvc) Save(ctx context.Context, job *models.IngestionJob) error {
	f.jobs[job.ID] = *job
	return nil
}
func (f *fakeJobsSvc) CancelNonTerminal(ctx context.Context, tenantID, versionID string) error {
	for id, j := range f.jobs {
		if j.VersionID == versionID {
			j.Status = models.JobFailed
			j.ErrorCode = "document_deleted"
			f.jobs[id] = j
		}
	}
	return nil
}

type fakeOutboxSvc struct{ events []models.EventOutbox }

func (f *fakeOutboxSvc) Enqueue(ctx context.Context, event *models.EventOutbox) error {
	f.events = append(f.events, *event)
	return nil
}
func (f *fakeOutboxSvc) LeaseBatch(ctx context.Context, owner string, leaseFor time.Duration, limit int) ([]models.EventOutbox, error) {
	return nil, nil
}
func (f *fakeOutboxSvc) MarkProcessed(ctx context.Context, id string) error { return nil }
func (f *fakeOutboxSvc) MarkFailed(ctx context.Context, id string, errMsg string, nextRetryAt time.Time) error {
	return nil
}

type fakeObjectsSvc struct{}

func (f *fakeObjectsSvc) GenerateKey(tenant, document string, version int) string {
	return "tenants/" + tenant + "/docs/" + document + "/v1/original"
}
func (f *fakeObjectsSvc) GetUploadURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return "https://upload.example/" + key, nil
}
func (f *fakeObjectsSvc) GetDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://download.example/" + key, nil
}
func (f *fakeObjectsSvc) Download(ctx context.Context, key string) ([]byte, error) { return nil, nil }
func (f *fakeObjectsSvc) DownloadReader(ctx context.Context, key string) (io.ReadCloser, error) {
	return nil, nil
}
func (f *fakeObjectsSvc) Delete(ctx context.Context, key string) error { return nil }

func newTestService() (*DocumentService, *fakeDocs, *fakeVersionsSvc, *fakeJobsSvc, *fakeOutboxSvc) {
	docs := &fakeDocs{docs: map[string]models.Document{}}
	versions := &fakeVersionsSvc{versions: map[string]models.DocumentVersion{}}
	jobsRepo := &fakeJobsSvc{jobs: map[string]models.IngestionJob{}}
	outboxRepo := &fakeOutboxSvc{}
	svc := NewDocumentService(docs, versions, jobsRepo, outboxRepo, &fakeObjectsSvc{})
	return svc, docs, versions, jobsRepo, outboxRepo
}

func TestInitUpload_CreatesDocumentVersionAndJob(t *testing.T) {
	svc, docs, versions, jobsRepo, _ := newTestService()

	res, err := svc.InitUpload(context.Background(), "tenant-1", "user-1", "My Doc", "report.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("InitUpload: %v", err)
	}
	if res.UploadURL == "" {
		t.Fatalf("expected a presigned upload URL")
	}

	if _, ok := docs.docs[res.DocumentID]; !ok {
		t.Fatalf("document not persisted")
	}
	v, ok := versions.versions[res.VersionID]
	if !ok {
		t.Fatalf("version not persisted")
	}
	if v.Materialized {
		t.Fatalf("new version should not be materialized yet")
	}
	job, ok := jobsRepo.jobs[res.JobID]
	if !ok {
		t.Fatalf("job not persisted")
	}
	if job.Stage != models.StagePendingUpload || job.SourceType != models.SourcePDF {
		t.Fatalf("unexpected job state: %+v", job)
	}
}

func TestCompleteUpload_AdvancesJobAndEnqueuesEvent(t *testing.T) {
	svc, _, _, jobsRepo, outboxRepo := newTestService()

	res, err := svc.InitUpload(context.Background(), "tenant-1", "user-1", "My Doc", "notes.txt", "text/plain")
	if err != nil {
		t.Fatalf("InitUpload: %v", err)
	}

	if err := svc.CompleteUpload(context.Background(), "tenant-1", res.VersionID, 1024, "deadbeef"); err != nil {
		t.Fatalf("CompleteUpload: %v", err)
	}

	job := jobsRepo.jobs[res.JobID]
	if job.Stage == models.StagePendingUpload {
		t.Fatalf("expected job to advance past pending_upload, got %q", job.Stage)
	}
	if len(outboxRepo.events) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(outboxRepo.events))
	}
	if outboxRepo.events[0].EventType != "document.ingestion_requested" {
		t.Fatalf("unexpected event type %q", outboxRepo.events[0].EventType)
	}
}

func TestDelete_MarksDocumentDeletedPendingAndCancelsJobs(t *testing.T) {
	svc, docs, _, jobsRepo, _ := newTestService()

	res, err := svc.InitUpload(context.Background(), "tenant-1", "user-1", "My Doc", "notes.txt", "text/plain")
	if err != nil {
		t.Fatalf("InitUpload: %v", err)
	}

	if err := svc.Delete(context.Background(), "tenant-1", res.DocumentID, res.VersionID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if docs.docs[res.DocumentID].Status != models.DocumentDeletedPending {
		t.Fatalf("expected deleted_pending status")
	}
	if jobsRepo.jobs[res.JobID].Status != models.JobFailed {
		t.Fatalf("expected job failed with document_deleted")
	}
}
