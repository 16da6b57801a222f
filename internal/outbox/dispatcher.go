// Package outbox implements the C8 dispatcher: it polls the durable event
// queue (internal/repo.Outbox), leases eligible rows with a visibility
// timeout, and hands each to a Handler. Grounded on the teacher's
// channel-fed worker-pool loop
// (internal/core/ingestion_engine/ingestion_pipeline.go's DocumentIngestor.Start),
// generalized from an in-memory channel to a polled, leased, durable queue.
package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/markdave123-py/Contexta/internal/jobs"
	"github.com/markdave123-py/Contexta/internal/models"
	"github.com/markdave123-py/Contexta/internal/repo"
)

// Handler processes one leased event. Returning a nil error commits the
// event (processed_at is set); a non-nil error schedules a retry via the
// job state machine's backoff unless attempts are exhausted, in which case
// the row becomes a poison message (§4.8).
type Handler func(ctx context.Context, event models.EventOutbox) error

// RetryAfter is returned by a Handler when it knows precisely when the event
// should next be redelivered — e.g. the ingestion job it drives is already
// retry_ready with its own next_retry_at computed by the job state machine.
// Without this, the dispatcher would apply its own generic backoff on top of
// the job's, hot-looping or double-backing-off the same failure. Err, if
// non-nil, is recorded as the event's last_error; the event's own attempts
// counter still increments per delivery, which is why the event's
// max_attempts (IngestionEventMaxAttempts) sits above a job's own retry budget.
type RetryAfter struct {
	At  time.Time
	Err error
}

func (r *RetryAfter) Error() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return "ingestion job not yet ready to resume"
}

func (r *RetryAfter) Unwrap() error { return r.Err }

// IngestionEventMaxAttempts is the max_attempts set on a
// document.ingestion_requested event at enqueue time. It is intentionally
// above a job's own MaxAttempts (default 3): the event must survive
// redelivery across the job's entire retry_ready/backoff cycle, which can
// span several dispatcher polls without the event itself ever failing.
const IngestionEventMaxAttempts = 8

// Config tunes the dispatcher's poll cadence, lease duration, and
// concurrency. Defaults match §5's "bounded worker count (default small,
// e.g. 4)" and §4.8's "poll in short cycles (a few seconds)".
type Config struct {
	PollInterval time.Duration
	LeaseFor     time.Duration
	BatchSize    int
	Concurrency  int
	Owner        string
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig(owner string) Config {
	return Config{
		PollInterval: 3 * time.Second,
		LeaseFor:     5 * time.Minute,
		BatchSize:    16,
		Concurrency:  4,
		Owner:        owner,
	}
}

// Dispatcher is the polling loop described in §4.8.
type Dispatcher struct {
	cfg     Config
	outbox  repo.Outbox
	logger  *slog.Logger
	handle  Handler
	sem     chan struct{}
}

// New builds a Dispatcher wired to outbox and a handler for leased events.
func New(cfg Config, outbox repo.Outbox, logger *slog.Logger, handle Handler) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.LeaseFor <= 0 {
		cfg.LeaseFor = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Dispatcher{
		cfg:    cfg,
		outbox: outbox,
		logger: logger,
		handle: handle,
		sem:    make(chan struct{}, cfg.Concurrency),
	}
}

// Run polls until ctx is cancelled. Each cycle leases a batch and dispatches
// it across up to cfg.Concurrency goroutines, bounded by the semaphore, so a
// slow handler can't starve the rest of the batch from being picked up next
// cycle — but also never exceeds the configured worker count (§5).
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pollOnce(ctx)
		}
	}
}

func (d *Dispatcher) pollOnce(ctx context.Context) {
	events, err := d.outbox.LeaseBatch(ctx, d.cfg.Owner, d.cfg.LeaseFor, d.cfg.BatchSize)
	if err != nil {
		d.logger.Error("outbox lease batch failed", "error", err)
		return
	}

	for _, event := range events {
		event := event
		d.sem <- struct{}{}
		go func() {
			defer func() { <-d.sem }()
			d.dispatchOne(ctx, event)
		}()
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, event models.EventOutbox) {
	// A per-event deadline keeps one stuck handler from outliving the
	// dispatcher's own lifecycle indefinitely.
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.LeaseFor)
	defer cancel()

	err := d.handle(callCtx, event)
	if err == nil {
		if markErr := d.outbox.MarkProcessed(ctx, event.ID); markErr != nil {
			d.logger.Error("outbox mark processed failed", "event_id", event.ID, "error", markErr)
		}
		return
	}

	d.logger.Warn("outbox handler failed", "event_id", event.ID, "event_type", event.EventType,
		"attempts", event.Attempts, "error", err)

	next := jobs.NextRetryAt(event.Attempts, time.Now().UTC())
	msg := err.Error()
	var retryAfter *RetryAfter
	if errors.As(err, &retryAfter) {
		next = retryAfter.At
		if retryAfter.Err != nil {
			msg = retryAfter.Err.Error()
		} else {
			msg = ""
		}
	}

	if markErr := d.outbox.MarkFailed(ctx, event.ID, msg, next); markErr != nil {
		d.logger.Error("outbox mark failed failed", "event_id", event.ID, "error", markErr)
	}
}
