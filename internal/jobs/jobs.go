// Package jobs implements the ingestion job state machine (§4.7) as a pure
// function of (current row, event) -> (next row, side-effect intent).
// Persistence is a separate concern, carried out by the outbox dispatcher
// and repositories; this package only decides what the next row should look
// like. Grounded on the teacher's status-transition calls scattered through
// DocumentIngestor.processOne
// (internal/core/ingestion_engine/ingestion_pipeline.go, e.g.
// UpdateDocumentStatus(ctx, docID, "failed"/"ready")), generalized here into
// an explicit table-driven machine with attempts/backoff accounting that the
// teacher's ad hoc status strings did not have.
package jobs

import (
	"math/rand"
	"time"

	"github.com/markdave123-py/Contexta/internal/ingesterr"
	"github.com/markdave123-py/Contexta/internal/models"
)

const (
	backoffBase     = 30 * time.Second
	backoffMax      = 30 * time.Minute
	jitterFraction  = 0.1
)

// Event is one state-machine input.
type Event string

const (
	EventUploadComplete    Event = "upload_complete"
	EventDispatcherLease   Event = "dispatcher_lease"
	EventParseOK           Event = "parse_ok"
	EventChunkOK           Event = "chunk_ok"
	EventEmbeddingsCommitted Event = "embeddings_committed"
	EventRetryableError    Event = "retryable_error"
	EventTerminalError     Event = "terminal_error"
	EventRetryWindowReached Event = "retry_window_reached"
	EventDocumentDeleted   Event = "document_deleted"
)

// SideEffect names the action the caller must perform after applying a
// transition (e.g. schedule work, record a completion metric).
type SideEffect string

const (
	EffectNone              SideEffect = "none"
	EffectScheduleRetry     SideEffect = "schedule_retry"
	EffectEnqueueProcessing SideEffect = "enqueue_processing"
	EffectRecordCompletion  SideEffect = "record_completion"
	EffectRecordFailure     SideEffect = "record_failure"
)

// Input carries the event-specific data a transition may need.
type Input struct {
	Event   Event
	Err     *ingesterr.Error
	Now     time.Time
	// NextStage is not read by Apply: each stage-advance event moves the
	// job to a fixed next stage (e.g. parsing -> chunking).
	NextStage models.JobStage
}

// Result is the outcome of applying one transition: the updated job fields
// the caller must persist, plus the side effect it must carry out.
type Result struct {
	Status      models.JobStatus
	Stage       models.JobStage
	Attempts    int
	StartedAt   *time.Time
	CompletedAt *time.Time
	NextRetryAt *time.Time
	ErrorCode   string
	LastError   string
	Effect      SideEffect
}

// Apply computes the next row for job given in. It never mutates job; the
// caller persists the returned Result.
func Apply(job models.IngestionJob, in Input) Result {
	res := Result{
		Status:      job.Status,
		Stage:       job.Stage,
		Attempts:    job.Attempts,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		NextRetryAt: nil,
		ErrorCode:   job.ErrorCode,
		LastError:   job.LastError,
		Effect:      EffectNone,
	}

	switch in.Event {
	case EventDocumentDeleted:
		return failTerminal(res, in, ingesterr.DocumentDeleted, "document deleted")

	case EventUploadComplete:
		if job.Status == models.JobQueued && job.Stage == models.StagePendingUpload {
			res.Stage = models.StageUploaded
		}
		return res

	case EventDispatcherLease:
		if job.Status != models.JobQueued && job.Status != models.JobRetryReady {
			return res
		}
		res.Status = models.JobProcessing
		res.Stage = models.StageParsing
		switch job.Stage {
		case models.StageParsing, models.StageChunking, models.StageEmbedding:
			// Retry resumes at the stage it failed in, not always parsing.
			res.Stage = job.Stage
		}
		res.Attempts = job.Attempts + 1
		if job.StartedAt == nil {
			started := in.Now
			res.StartedAt = &started
		}
		res.Effect = EffectEnqueueProcessing
		return res

	case EventParseOK:
		res.Stage = models.StageChunking
		return res

	case EventChunkOK:
		res.Stage = models.StageEmbedding
		return res

	case EventEmbeddingsCommitted:
		res.Status = models.JobDone
		completed := in.Now
		res.CompletedAt = &completed
		res.ErrorCode = ""
		res.LastError = ""
		res.Effect = EffectRecordCompletion
		return res

	case EventRetryableError:
		if job.Attempts >= job.MaxAttempts {
			return failTerminal(res, in, codeOf(in.Err), messageOf(in.Err))
		}
		res.Status = models.JobRetryReady
		next := NextRetryAt(job.Attempts, in.Now)
		res.NextRetryAt = &next
		res.ErrorCode = string(codeOf(in.Err))
		res.LastError = messageOf(in.Err)
		res.Effect = EffectScheduleRetry
		return res

	case EventTerminalError:
		return failTerminal(res, in, codeOf(in.Err), messageOf(in.Err))

	case EventRetryWindowReached:
		if job.Status != models.JobRetryReady {
			return res
		}
		res.Status = models.JobProcessing
		return res

	default:
		return res
	}
}

func failTerminal(res Result, in Input, code ingesterr.Code, msg string) Result {
	res.Status = models.JobFailed
	res.ErrorCode = string(code)
	res.LastError = msg
	completed := in.Now
	res.CompletedAt = &completed
	res.Effect = EffectRecordFailure
	return res
}

func codeOf(e *ingesterr.Error) ingesterr.Code {
	if e == nil {
		return ingesterr.Internal
	}
	return e.Code
}

func messageOf(e *ingesterr.Error) string {
	if e == nil {
		return ""
	}
	return e.Message
}

// NextRetryAt computes next_retry_at = now + base*2^(attempts-1), capped at
// backoffMax, plus up to jitterFraction of additional random jitter (§4.7).
func NextRetryAt(attempts int, now time.Time) time.Time {
	if attempts < 1 {
		attempts = 1
	}
	exp := attempts - 1
	if exp > 20 {
		exp = 20 // guard against overflow in the shift below
	}
	delay := backoffBase * time.Duration(1<<uint(exp))
	if delay > backoffMax {
		delay = backoffMax
	}
	jitter := time.Duration(rand.Int63n(int64(float64(delay) * jitterFraction)))
	return now.Add(delay + jitter)
}
