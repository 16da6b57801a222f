package jobs

import (
	"testing"
	"time"

	"github.com/markdave123-py/Contexta/internal/ingesterr"
	"github.com/markdave123-py/Contexta/internal/models"
)

func TestApply_DispatcherLeaseFromQueued(t *testing.T) {
	job := models.IngestionJob{
		Status:      models.JobQueued,
		Stage:       models.StageUploaded,
		Attempts:    0,
		MaxAttempts: 5,
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	res := Apply(job, Input{Event: EventDispatcherLease, Now: now})

	if res.Status != models.JobProcessing {
		t.Fatalf("expected status processing, got %s", res.Status)
	}
	if res.Stage != models.StageParsing {
		t.Fatalf("expected stage parsing, got %s", res.Stage)
	}
	if res.Attempts != 1 {
		t.Fatalf("expected attempts incremented to 1, got %d", res.Attempts)
	}
	if res.StartedAt == nil || !res.StartedAt.Equal(now) {
		t.Fatalf("expected started_at set to now on first lease")
	}
	if res.Effect != EffectEnqueueProcessing {
		t.Fatalf("expected enqueue_processing side effect, got %s", res.Effect)
	}
}

func TestApply_RetryResumesAtFailedStage(t *testing.T) {
	job := models.IngestionJob{
		Status:      models.JobRetryReady,
		Stage:       models.StageEmbedding,
		Attempts:    1,
		MaxAttempts: 5,
	}
	res := Apply(job, Input{Event: EventDispatcherLease, Now: time.Now()})
	if res.Stage != models.StageEmbedding {
		t.Fatalf("expected resume at embedding stage, got %s", res.Stage)
	}
	if res.Attempts != 2 {
		t.Fatalf("expected attempts incremented to 2, got %d", res.Attempts)
	}
}

func TestApply_RetryableErrorBelowMaxSchedulesRetry(t *testing.T) {
	job := models.IngestionJob{
		Status:      models.JobProcessing,
		Stage:       models.StageEmbedding,
		Attempts:    1,
		MaxAttempts: 5,
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	res := Apply(job, Input{
		Event: EventRetryableError,
		Err:   ingesterr.New(ingesterr.ProviderRateLimited, "rate limited"),
		Now:   now,
	})

	if res.Status != models.JobRetryReady {
		t.Fatalf("expected retry_ready, got %s", res.Status)
	}
	if res.NextRetryAt == nil || !res.NextRetryAt.After(now) {
		t.Fatalf("expected next_retry_at set in the future")
	}
	if res.Effect != EffectScheduleRetry {
		t.Fatalf("expected schedule_retry side effect, got %s", res.Effect)
	}
}

func TestApply_RetryableErrorAtMaxAttemptsFails(t *testing.T) {
	job := models.IngestionJob{
		Status:      models.JobProcessing,
		Stage:       models.StageEmbedding,
		Attempts:    5,
		MaxAttempts: 5,
	}
	res := Apply(job, Input{
		Event: EventRetryableError,
		Err:   ingesterr.New(ingesterr.Timeout, "timed out"),
		Now:   time.Now(),
	})

	if res.Status != models.JobFailed {
		t.Fatalf("expected failed once attempts >= max, got %s", res.Status)
	}
	if res.ErrorCode != string(ingesterr.Timeout) {
		t.Fatalf("expected error code preserved, got %s", res.ErrorCode)
	}
	if res.Effect != EffectRecordFailure {
		t.Fatalf("expected record_failure side effect, got %s", res.Effect)
	}
}

func TestApply_TerminalErrorAlwaysFails(t *testing.T) {
	job := models.IngestionJob{Status: models.JobProcessing, Stage: models.StageParsing, Attempts: 1, MaxAttempts: 5}
	res := Apply(job, Input{
		Event: EventTerminalError,
		Err:   ingesterr.New(ingesterr.UnsupportedFormat, "unsupported"),
		Now:   time.Now(),
	})
	if res.Status != models.JobFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
	if res.CompletedAt == nil {
		t.Fatal("expected completed_at to be set on terminal failure")
	}
}

func TestApply_DocumentDeletedOverridesAnyState(t *testing.T) {
	job := models.IngestionJob{Status: models.JobProcessing, Stage: models.StageChunking, Attempts: 2, MaxAttempts: 5}
	res := Apply(job, Input{Event: EventDocumentDeleted, Now: time.Now()})
	if res.Status != models.JobFailed {
		t.Fatalf("expected failed, got %s", res.Status)
	}
	if res.ErrorCode != string(ingesterr.DocumentDeleted) {
		t.Fatalf("expected document_deleted error code, got %s", res.ErrorCode)
	}
}

func TestApply_StageAdvancesInOrder(t *testing.T) {
	job := models.IngestionJob{Status: models.JobProcessing, Stage: models.StageParsing}
	res := Apply(job, Input{Event: EventParseOK, Now: time.Now()})
	if res.Stage != models.StageChunking {
		t.Fatalf("expected chunking stage after parse_ok, got %s", res.Stage)
	}

	job.Stage = models.StageChunking
	res = Apply(job, Input{Event: EventChunkOK, Now: time.Now()})
	if res.Stage != models.StageEmbedding {
		t.Fatalf("expected embedding stage after chunk_ok, got %s", res.Stage)
	}
}

func TestApply_EmbeddingsCommittedCompletesJob(t *testing.T) {
	job := models.IngestionJob{Status: models.JobProcessing, Stage: models.StageEmbedding}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	res := Apply(job, Input{Event: EventEmbeddingsCommitted, Now: now})
	if res.Status != models.JobDone {
		t.Fatalf("expected done, got %s", res.Status)
	}
	if res.CompletedAt == nil || !res.CompletedAt.Equal(now) {
		t.Fatalf("expected completed_at set to now")
	}
	if res.Effect != EffectRecordCompletion {
		t.Fatalf("expected record_completion side effect, got %s", res.Effect)
	}
}

func TestNextRetryAt_ExponentialWithCap(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	first := NextRetryAt(1, now)
	if first.Before(now.Add(backoffBase)) || first.After(now.Add(backoffBase+backoffBase)) {
		t.Fatalf("expected first retry around base delay, got %v", first.Sub(now))
	}

	capped := NextRetryAt(30, now)
	if capped.Sub(now) > backoffMax+backoffMax/10 {
		t.Fatalf("expected backoff capped near max, got %v", capped.Sub(now))
	}
}

func TestNextRetryAt_MonotonicWithAttempts(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := NextRetryAt(2, now).Sub(now)
	d4 := NextRetryAt(4, now).Sub(now)
	if d4 < d2 {
		t.Fatalf("expected backoff to grow with attempts, got d2=%v d4=%v", d2, d4)
	}
}
