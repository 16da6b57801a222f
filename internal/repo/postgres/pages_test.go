package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/markdave123-py/Contexta/internal/models"
)

func newPageRepoWithMock(t *testing.T) (*PageRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &PageRepository{db: db}, mock, func() { _ = db.Close() }
}

// TestReplaceAll_DeletesThenInsertsInOneTransaction exercises the §8
// at-most-once commit invariant: a re-run of the parse stage must wipe the
// prior page set for this version inside the same transaction as the new
// insert, not alongside it.
func TestReplaceAll_DeletesThenInsertsInOneTransaction(t *testing.T) {
	repo, mock, done := newPageRepoWithMock(t)
	defer done()

	versionID := "v-1"
	pages := []models.DocumentPage{
		{VersionID: versionID, PageNumber: 1, Text: "first page", CharCount: 10},
		{VersionID: versionID, PageNumber: 2, Text: "second page", CharCount: 11},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM document_pages").
		WithArgs(versionID).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectPrepare("INSERT INTO document_pages")
	mock.ExpectExec("INSERT INTO document_pages").
		WithArgs(versionID, 1, "first page", 10).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO document_pages").
		WithArgs(versionID, 2, "second page", 11).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.ReplaceAll(context.Background(), versionID, pages); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// TestReplaceAll_RunningTwiceIsIdempotent runs ReplaceAll against the same
// mocked sequence twice in a row, demonstrating that a retried parse stage
// produces the identical delete-then-insert shape each time rather than
// accumulating duplicate rows.
func TestReplaceAll_RunningTwiceIsIdempotent(t *testing.T) {
	repo, mock, done := newPageRepoWithMock(t)
	defer done()

	versionID := "v-2"
	pages := []models.DocumentPage{{VersionID: versionID, PageNumber: 1, Text: "only page", CharCount: 9}}

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM document_pages").
			WithArgs(versionID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectPrepare("INSERT INTO document_pages")
		mock.ExpectExec("INSERT INTO document_pages").
			WithArgs(versionID, 1, "only page", 9).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		if err := repo.ReplaceAll(context.Background(), versionID, pages); err != nil {
			t.Fatalf("ReplaceAll() run %d error = %v", i, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceAll_RollsBackOnInsertFailure(t *testing.T) {
	repo, mock, done := newPageRepoWithMock(t)
	defer done()

	versionID := "v-3"
	pages := []models.DocumentPage{{VersionID: versionID, PageNumber: 1, Text: "x", CharCount: 1}}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM document_pages").
		WithArgs(versionID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare("INSERT INTO document_pages")
	mock.ExpectExec("INSERT INTO document_pages").
		WithArgs(versionID, 1, "x", 1).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	if err := repo.ReplaceAll(context.Background(), versionID, pages); err == nil {
		t.Fatalf("expected error from failed insert")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
