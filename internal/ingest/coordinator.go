// Package ingest implements the top-level ingestion orchestration (C9,
// §4.9): download -> parse -> gate -> chunk -> embed -> persist. Grounded on
// the teacher's DocumentIngestor.processOne
// (internal/core/ingestion_engine/ingestion_pipeline.go and
// internal/core/ingestor_engine/ingestor_service.go), replaced here with the
// explicit result-carrying linear sequence §9 calls for instead of
// thrown-exception control flow: every stage returns either a normalized
// value or a *ingesterr.Error, and the coordinator threads state through
// the job row rather than a channel pipeline.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/Contexta/internal/chunker"
	"github.com/markdave123-py/Contexta/internal/ingesterr"
	"github.com/markdave123-py/Contexta/internal/jobs"
	"github.com/markdave123-py/Contexta/internal/models"
	"github.com/markdave123-py/Contexta/internal/objectstore"
	"github.com/markdave123-py/Contexta/internal/outbox"
	"github.com/markdave123-py/Contexta/internal/parser"
	"github.com/markdave123-py/Contexta/internal/quality"
	"github.com/markdave123-py/Contexta/internal/repo"
	"github.com/markdave123-py/Contexta/internal/resilience"
)

// Per-stage deadlines (§5 "Cancellation"): a stuck parse/chunk/embed call is
// cancelled and surfaces as a timeout, which the classifier marks retryable.
const (
	parseDeadline = 5 * time.Minute
	chunkDeadline = 5 * time.Minute
	embedDeadline = 10 * time.Minute
)

// Embedder is the narrow slice of embedding.Client the coordinator depends
// on, kept as an interface so tests can stand in a fake without dialing
// Gemini (§4.6).
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// Coordinator wires every subsystem the orchestration touches.
type Coordinator struct {
	Repos      repo.Repositories
	Objects    objectstore.Client
	Router     *parser.Router
	ChunkCfg   chunker.Config
	Embedder   Embedder
	Resilience *resilience.Executor
	Logger     *slog.Logger
}

// New builds a Coordinator with the default chunker budget (§4.5) if none
// is supplied.
func New(repos repo.Repositories, objects objectstore.Client, router *parser.Router, embedder Embedder, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		Repos:      repos,
		Objects:    objects,
		Router:     router,
		ChunkCfg:   chunker.DefaultConfig(),
		Embedder:   embedder,
		Resilience: resilience.NewExecutor(resilience.DefaultConfig()),
		Logger:     logger,
	}
}

// HandleEvent is the outbox.Handler entry point for a
// document.ingestion_requested event. It returns a *outbox.RetryAfter when
// the job is not yet terminal (still retry_ready and not due, or was just
// scheduled for retry) so the dispatcher reschedules the outbox row in step
// with the job's own backoff instead of the dispatcher's generic one, and a
// plain nil when the job reached done/failed/cancelled (event committed).
func (c *Coordinator) HandleEvent(ctx context.Context, event models.EventOutbox) error {
	var payload models.IngestionRequestedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("ingest: decode outbox payload: %w", err)
	}

	job, err := c.Repos.Jobs.Get(ctx, payload.TenantID, payload.JobID)
	if err != nil {
		return fmt.Errorf("ingest: load job %s: %w", payload.JobID, err)
	}

	switch job.Status {
	case models.JobDone, models.JobFailed, models.JobCancelled:
		// Already terminal: a duplicate delivery is a no-op (§8 "at-most-once commit").
		return nil
	case models.JobRetryReady:
		if job.NextRetryAt != nil && time.Now().UTC().Before(*job.NextRetryAt) {
			return &outbox.RetryAfter{At: *job.NextRetryAt}
		}
	}

	terminal, retryAt, procErr := c.ProcessJob(ctx, *job)
	if procErr != nil {
		return fmt.Errorf("ingest: process job %s: %w", job.ID, procErr)
	}
	if terminal {
		return nil
	}
	return &outbox.RetryAfter{At: retryAt}
}

// ProcessJob runs one lease-to-completion (or lease-to-retry) pass over job,
// implementing §4.9 steps 1-9. It returns terminal=true once the job reached
// done/failed/cancelled, or terminal=false with the time the caller should
// resume at.
func (c *Coordinator) ProcessJob(ctx context.Context, job models.IngestionJob) (terminal bool, retryAt time.Time, err error) {
	now := time.Now().UTC()
	lease := jobs.Apply(job, jobs.Input{Event: jobs.EventDispatcherLease, Now: now})
	if err := c.applyAndSave(ctx, &job, lease); err != nil {
		return false, time.Time{}, err
	}

	version, err := c.Repos.Versions.Get(ctx, job.TenantID, job.VersionID)
	if err != nil {
		return c.fail(ctx, &job, ingesterr.New(ingesterr.Internal, err.Error()))
	}
	doc, err := c.Repos.Documents.Get(ctx, job.TenantID, version.DocumentID)
	if err != nil {
		return c.fail(ctx, &job, ingesterr.New(ingesterr.Internal, err.Error()))
	}

	// Step 1: document deletion is observed at the start of processing and
	// at every subsequent stage boundary (§4.9 step 1, §5 "Cancellation").
	if doc.Status != models.DocumentActive {
		return c.fail(ctx, &job, ingesterr.New(ingesterr.DocumentDeleted, "document deleted"))
	}

	if job.Stage == models.StageParsing || job.Stage == models.StageUploaded || job.Stage == "" {
		return c.runParseAndChunk(ctx, job, *version, *doc)
	}
	if job.Stage == models.StageChunking {
		// Resuming after a retry that failed mid-chunk: pages are already
		// committed, so re-run parse is unnecessary but harmless given the
		// delete-then-insert idempotence; we simply restart at parse to keep
		// the state machine's stage-resume logic uniform.
		return c.runParseAndChunk(ctx, job, *version, *doc)
	}
	return c.runEmbed(ctx, job, *version, *doc)
}

func (c *Coordinator) runParseAndChunk(ctx context.Context, job models.IngestionJob, version models.DocumentVersion, doc models.Document) (bool, time.Time, error) {
	parseCtx, cancel := context.WithTimeout(ctx, parseDeadline)
	defer cancel()

	data, err := c.downloadWithRetry(parseCtx, version.ObjectKey)
	if err != nil {
		return c.classifyAndRoute(ctx, &job, err)
	}

	result, err := c.Router.Route(version.MimeType, job.SourceType, data)
	if err != nil {
		return c.classifyAndRoute(ctx, &job, err)
	}

	report, qerr := quality.Evaluate(result.Pages)
	if qerr != nil {
		return c.fail(ctx, &job, qerr)
	}
	if len(report.Issues) > 0 {
		c.Logger.Warn("quality gate passed with issues", "job_id", job.ID, "issues", report.Issues)
	}

	pages := make([]models.DocumentPage, len(result.Pages))
	for i, p := range result.Pages {
		pages[i] = models.DocumentPage{VersionID: version.ID, PageNumber: p.PageNumber, Text: p.Text, CharCount: len(p.Text)}
	}
	if err := c.Repos.Pages.ReplaceAll(ctx, version.ID, pages); err != nil {
		return c.classifyAndRoute(ctx, &job, err)
	}

	parseOK := jobs.Apply(job, jobs.Input{Event: jobs.EventParseOK, Now: time.Now().UTC()})
	if err := c.applyAndSave(ctx, &job, parseOK); err != nil {
		return false, time.Time{}, err
	}

	// Re-check document deletion at the stage boundary (§5 "Cancellation").
	if refreshed, err := c.Repos.Documents.Get(ctx, doc.TenantID, doc.ID); err == nil && refreshed.Status != models.DocumentActive {
		return c.fail(ctx, &job, ingesterr.New(ingesterr.DocumentDeleted, "document deleted"))
	}

	chunkCtx, cancel := context.WithTimeout(ctx, chunkDeadline)
	defer cancel()

	chunks := chunker.Chunk(result.Pages, c.ChunkCfg)
	if err := chunkCtx.Err(); err != nil {
		return c.classifyAndRoute(ctx, &job, err)
	}

	modelChunks := make([]models.DocumentChunk, len(chunks))
	for i, ch := range chunks {
		modelChunks[i] = models.DocumentChunk{
			ID:         uuid.NewString(),
			VersionID:  version.ID,
			ChunkIndex: ch.Index,
			Text:       ch.Text,
			PageStart:  ch.PageStart,
			PageEnd:    ch.PageEnd,
			Sentences:  ch.Sentences,
		}
	}
	if err := c.Repos.Chunks.ReplaceAll(ctx, version.ID, modelChunks); err != nil {
		return c.classifyAndRoute(ctx, &job, err)
	}

	chunkOK := jobs.Apply(job, jobs.Input{Event: jobs.EventChunkOK, Now: time.Now().UTC()})
	if err := c.applyAndSave(ctx, &job, chunkOK); err != nil {
		return false, time.Time{}, err
	}

	return c.runEmbed(ctx, job, version, doc)
}

func (c *Coordinator) runEmbed(ctx context.Context, job models.IngestionJob, version models.DocumentVersion, doc models.Document) (bool, time.Time, error) {
	if refreshed, err := c.Repos.Documents.Get(ctx, doc.TenantID, doc.ID); err == nil && refreshed.Status != models.DocumentActive {
		return c.fail(ctx, &job, ingesterr.New(ingesterr.DocumentDeleted, "document deleted"))
	}

	chunks, err := c.Repos.Chunks.ListByVersion(ctx, version.ID)
	if err != nil {
		return c.classifyAndRoute(ctx, &job, err)
	}

	embedCtx, cancel := context.WithTimeout(ctx, embedDeadline)
	defer cancel()

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := c.Embedder.EmbedTexts(embedCtx, texts)
	if err != nil {
		return c.classifyAndRoute(ctx, &job, err)
	}

	embeddings := make([]models.ChunkEmbedding, len(chunks))
	for i, ch := range chunks {
		embeddings[i] = models.ChunkEmbedding{ChunkID: ch.ID, Vector: vectors[i], Model: c.Embedder.ModelName()}
	}
	if err := c.Repos.Embeddings.ReplaceAllForVersion(ctx, version.ID, embeddings); err != nil {
		return c.classifyAndRoute(ctx, &job, err)
	}

	pages, err := c.Repos.Pages.ListByVersion(ctx, version.ID)
	if err != nil {
		return c.classifyAndRoute(ctx, &job, err)
	}

	done := jobs.Apply(job, jobs.Input{Event: jobs.EventEmbeddingsCommitted, Now: time.Now().UTC()})
	done.ErrorCode = ""
	done.LastError = ""
	metricsJob := job
	metricsJob.Metrics = map[string]any{
		"pageCount":  len(pages),
		"chunkCount": len(chunks),
		"totalWords": totalWords(texts),
		"parser":     job.SourceType,
	}
	if err := c.applyAndSave(ctx, &metricsJob, done); err != nil {
		return false, time.Time{}, err
	}
	c.Logger.Info("ingestion job done", "job_id", job.ID, "version_id", version.ID, "chunk_count", len(chunks))
	return true, time.Time{}, nil
}

// downloadWithRetry wraps C1's Download under the shared resilience
// executor so transient object-store failures are retried before the
// coordinator falls back to the job-level retry/backoff for anything left
// over (§4.1, §5 "Shared-resource policy").
func (c *Coordinator) downloadWithRetry(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := c.Resilience.Execute(ctx, "object_store_download", func(ctx context.Context) error {
		b, err := c.Objects.Download(ctx, key)
		if err != nil {
			return err
		}
		data = b
		return nil
	}, objectStoreClassifier)
	return data, err
}

func objectStoreClassifier(err error) resilience.Classification {
	var oerr *objectstore.Error
	if errors.As(err, &oerr) {
		return resilience.Classification{Retryable: oerr.Retryable(), RecordFailure: true}
	}
	return resilience.Classification{Retryable: true, RecordFailure: true}
}

// classifyAndRoute turns a raw stage error into a classified ingesterr.Error
// and applies the retryable-vs-terminal decision from the job state machine
// (§7 propagation policy).
func (c *Coordinator) classifyAndRoute(ctx context.Context, job *models.IngestionJob, err error) (bool, time.Time, error) {
	var classified *ingesterr.Error
	switch {
	case errors.As(err, &classified):
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		// A per-stage deadline (§5 "Cancellation") surfaces as a bare context
		// error, not a provider/parser string Classify can match — route it to
		// timeout explicitly so it stays retryable (§7) instead of falling
		// through to the ParseFailed default.
		classified = ingesterr.New(ingesterr.Timeout, err.Error())
	default:
		classified = ingesterr.ClassifyErr(err)
	}

	if !classified.Retryable() {
		return c.fail(ctx, job, classified)
	}

	res := jobs.Apply(*job, jobs.Input{Event: jobs.EventRetryableError, Err: classified, Now: time.Now().UTC()})
	if saveErr := c.applyAndSave(ctx, job, res); saveErr != nil {
		return false, time.Time{}, saveErr
	}
	if res.Status == models.JobFailed {
		return true, time.Time{}, nil
	}
	c.Logger.Warn("ingestion job scheduled for retry", "job_id", job.ID, "error_code", classified.Code, "next_retry_at", res.NextRetryAt)
	return false, *res.NextRetryAt, nil
}

func (c *Coordinator) fail(ctx context.Context, job *models.IngestionJob, classified *ingesterr.Error) (bool, time.Time, error) {
	res := jobs.Apply(*job, jobs.Input{Event: jobs.EventTerminalError, Err: classified, Now: time.Now().UTC()})
	if err := c.applyAndSave(ctx, job, res); err != nil {
		return false, time.Time{}, err
	}
	c.Logger.Error("ingestion job failed", "job_id", job.ID, "error_code", classified.Code, "message", classified.Message)
	return true, time.Time{}, nil
}

func (c *Coordinator) applyAndSave(ctx context.Context, job *models.IngestionJob, res jobs.Result) error {
	job.Status = res.Status
	job.Stage = res.Stage
	job.Attempts = res.Attempts
	job.StartedAt = res.StartedAt
	job.CompletedAt = res.CompletedAt
	job.NextRetryAt = res.NextRetryAt
	job.ErrorCode = res.ErrorCode
	job.LastError = res.LastError
	return c.Repos.Jobs.Save(ctx, job)
}

func totalWords(texts []string) int {
	n := 0
	for _, t := range texts {
		inWord := false
		for _, r := range t {
			isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
			if isSpace {
				inWord = false
				continue
			}
			if !inWord {
				n++
				inWord = true
			}
		}
	}
	return n
}
