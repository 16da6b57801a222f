package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/markdave123-py/Contexta/internal/models"
	"github.com/markdave123-py/Contexta/internal/repo"
)

// JobRepository persists IngestionJob rows. It never decides the next state
// itself — internal/jobs.Apply computes the Result, and Save just writes it.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository { return &JobRepository{db: db} }

var _ repo.Jobs = (*JobRepository)(nil)

func (r *JobRepository) Create(ctx context.Context, job *models.IngestionJob) error {
	metrics, err := marshalMetrics(job.Metrics)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO ingestion_jobs
			(id, tenant_id, version_id, source_type, status, stage, attempts, max_attempts,
			 last_error, error_code, metrics, started_at, completed_at, next_retry_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, job.ID, job.TenantID, job.VersionID, string(job.SourceType), string(job.Status), string(job.Stage),
		job.Attempts, job.MaxAttempts, job.LastError, job.ErrorCode, metrics,
		job.StartedAt, job.CompletedAt, job.NextRetryAt, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, tenantID, id string) (*models.IngestionJob, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, jobSelect+` WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *JobRepository) GetByVersion(ctx context.Context, tenantID, versionID string) (*models.IngestionJob, error) {
	// Exactly one active job per version (§3); terminal jobs from prior
	// attempts are retained for audit, so pick the most recently created row.
	return r.scanOne(r.db.QueryRowContext(ctx,
		jobSelect+` WHERE tenant_id = $1 AND version_id = $2 ORDER BY created_at DESC LIMIT 1`, tenantID, versionID))
}

func (r *JobRepository) Save(ctx context.Context, job *models.IngestionJob) error {
	metrics, err := marshalMetrics(job.Metrics)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE ingestion_jobs SET
			status = $3, stage = $4, attempts = $5, last_error = $6, error_code = $7,
			metrics = $8, started_at = $9, completed_at = $10, next_retry_at = $11
		WHERE tenant_id = $1 AND id = $2
	`, job.TenantID, job.ID, string(job.Status), string(job.Stage), job.Attempts, job.LastError, job.ErrorCode,
		metrics, job.StartedAt, job.CompletedAt, job.NextRetryAt)
	if err != nil {
		return fmt.Errorf("postgres: save job: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("postgres: job not found: %s", job.ID)
	}
	return nil
}

// CancelNonTerminal transitions every non-terminal job for a version to
// failed/document_deleted, used by document delete (§6 "Document ... delete").
func (r *JobRepository) CancelNonTerminal(ctx context.Context, tenantID, versionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE ingestion_jobs SET status = 'failed', error_code = 'document_deleted',
			last_error = 'document deleted', completed_at = now()
		WHERE tenant_id = $1 AND version_id = $2 AND status IN ('queued','processing','retry_ready')
	`, tenantID, versionID)
	if err != nil {
		return fmt.Errorf("postgres: cancel non-terminal jobs: %w", err)
	}
	return nil
}

const jobSelect = `
	SELECT id, tenant_id, version_id, source_type, status, stage, attempts, max_attempts,
		last_error, error_code, metrics, started_at, completed_at, next_retry_at, created_at
	FROM ingestion_jobs`

func (r *JobRepository) scanOne(row *sql.Row) (*models.IngestionJob, error) {
	var job models.IngestionJob
	var sourceType, status, stage string
	var metricsRaw []byte
	if err := row.Scan(&job.ID, &job.TenantID, &job.VersionID, &sourceType, &status, &stage,
		&job.Attempts, &job.MaxAttempts, &job.LastError, &job.ErrorCode, &metricsRaw,
		&job.StartedAt, &job.CompletedAt, &job.NextRetryAt, &job.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("postgres: job not found")
		}
		return nil, fmt.Errorf("postgres: scan job: %w", err)
	}
	job.SourceType = models.SourceType(sourceType)
	job.Status = models.JobStatus(status)
	job.Stage = models.JobStage(stage)
	if len(metricsRaw) > 0 {
		_ = json.Unmarshal(metricsRaw, &job.Metrics)
	}
	return &job, nil
}

func marshalMetrics(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal metrics: %w", err)
	}
	return b, nil
}
