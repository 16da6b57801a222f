package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newOutboxRepoWithMock(t *testing.T) (*OutboxRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &OutboxRepository{db: db}, mock, func() { _ = db.Close() }
}

// TestLeaseBatch_ClaimsEligibleRowsUnderSkipLocked exercises the FOR UPDATE
// SKIP LOCKED lease: eligible rows are selected, leased (attempts bumped,
// lease_owner/lease_until set), re-fetched, and the whole thing commits as
// one transaction so a concurrent poller never double-leases a row.
func TestLeaseBatch_ClaimsEligibleRowsUnderSkipLocked(t *testing.T) {
	repo, mock, done := newOutboxRepoWithMock(t)
	defer done()

	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM event_outbox").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("evt-1"))
	mock.ExpectPrepare("UPDATE event_outbox SET lease_owner")
	mock.ExpectExec("UPDATE event_outbox SET lease_owner").
		WithArgs("evt-1", "worker-a", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id, tenant_id, event_type, payload").
		WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "tenant_id", "event_type", "payload", "created_at", "processed_at",
			"attempts", "max_attempts", "last_error", "next_retry_at", "lease_owner", "lease_until",
		}).AddRow("evt-1", "tenant-a", "document.ingestion_requested", []byte(`{}`), now, nil,
			int64(1), int64(8), "", now, "worker-a", nil))
	mock.ExpectCommit()

	events, err := repo.LeaseBatch(context.Background(), "worker-a", time.Minute, 10)
	if err != nil {
		t.Fatalf("LeaseBatch() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 leased event, got %d", len(events))
	}
	if events[0].ID != "evt-1" || events[0].LeaseOwner != "worker-a" {
		t.Fatalf("unexpected leased event: %+v", events[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// TestLeaseBatch_NoEligibleRowsCommitsEmpty covers the poll that finds
// nothing to lease: the select-for-update still runs inside a transaction
// that must commit (not roll back) even though there's no work.
func TestLeaseBatch_NoEligibleRowsCommitsEmpty(t *testing.T) {
	repo, mock, done := newOutboxRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM event_outbox").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	events, err := repo.LeaseBatch(context.Background(), "worker-a", time.Minute, 10)
	if err != nil {
		t.Fatalf("LeaseBatch() error = %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no leased events, got %d", len(events))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
