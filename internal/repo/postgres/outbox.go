package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/markdave123-py/Contexta/internal/models"
	"github.com/markdave123-py/Contexta/internal/repo"
)

// OutboxRepository implements the durable FIFO-ish queue C8 leases against
// (§4.8). Leasing selects eligible rows with `FOR UPDATE SKIP LOCKED`, updates
// each leased row, and re-fetches them, all in one transaction, so concurrent
// pollers never double-lease a row;
// a row whose lease_until is still in the future is invisible to everyone
// else until it expires (the visibility timeout).
type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository { return &OutboxRepository{db: db} }

var _ repo.Outbox = (*OutboxRepository)(nil)

func (r *OutboxRepository) Enqueue(ctx context.Context, event *models.EventOutbox) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO event_outbox
			(id, tenant_id, event_type, payload, created_at, attempts, max_attempts, last_error, next_retry_at)
		VALUES ($1,$2,$3,$4,$5,0,$6,'',$7)
	`, event.ID, event.TenantID, event.EventType, event.Payload, event.CreatedAt, event.MaxAttempts, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: enqueue outbox event: %w", err)
	}
	return nil
}

// LeaseBatch atomically claims up to limit eligible rows: unprocessed,
// past their next_retry_at, below max_attempts, and not currently leased by
// another owner. Poison messages (attempts >= max_attempts) are excluded so
// they stay visible for inspection but are never polled again (§4.8).
func (r *OutboxRepository) LeaseBatch(ctx context.Context, owner string, leaseFor time.Duration, limit int) ([]models.EventOutbox, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: begin lease tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	leaseUntil := now.Add(leaseFor)

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM event_outbox
		WHERE processed_at IS NULL
		  AND next_retry_at <= $1
		  AND attempts < max_attempts
		  AND (lease_until IS NULL OR lease_until <= $1)
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: select lease candidates: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: scan lease candidate: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE event_outbox SET lease_owner = $2, lease_until = $3, attempts = attempts + 1
		WHERE id = $1
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: prepare lease update: %w", err)
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id, owner, leaseUntil); err != nil {
			return nil, fmt.Errorf("postgres: lease event %s: %w", id, err)
		}
	}

	leased, err := fetchByIDs(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres: commit lease tx: %w", err)
	}
	return leased, nil
}

func fetchByIDs(ctx context.Context, tx *sql.Tx, ids []string) ([]models.EventOutbox, error) {
	out := make([]models.EventOutbox, 0, len(ids))
	for _, id := range ids {
		row := tx.QueryRowContext(ctx, `
			SELECT id, tenant_id, event_type, payload, created_at, processed_at, attempts, max_attempts,
				last_error, next_retry_at, lease_owner, lease_until
			FROM event_outbox WHERE id = $1
		`, id)
		var e models.EventOutbox
		if err := row.Scan(&e.ID, &e.TenantID, &e.EventType, &e.Payload, &e.CreatedAt, &e.ProcessedAt,
			&e.Attempts, &e.MaxAttempts, &e.LastError, &e.NextRetryAt, &e.LeaseOwner, &e.LeaseUntil); err != nil {
			return nil, fmt.Errorf("postgres: fetch leased event %s: %w", id, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// MarkProcessed commits the event permanently: processed_at is set and the
// row becomes invisible to future LeaseBatch calls forever (§4.8).
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE event_outbox SET processed_at = $2, lease_owner = '', lease_until = NULL WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres: mark processed: %w", err)
	}
	return nil
}

// MarkFailed releases the lease and schedules the next retry attempt,
// recording the failure for operator visibility.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, errMsg string, nextRetryAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE event_outbox SET last_error = $2, next_retry_at = $3, lease_owner = '', lease_until = NULL
		WHERE id = $1
	`, id, errMsg, nextRetryAt)
	if err != nil {
		return fmt.Errorf("postgres: mark failed: %w", err)
	}
	return nil
}
