package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/markdave123-py/Contexta/internal/models"
)

func newEmbeddingRepoWithMock(t *testing.T) (*EmbeddingRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &EmbeddingRepository{db: db}, mock, func() { _ = db.Close() }
}

// TestReplaceAllForVersion_DeletesThenInsertsInOneTransaction exercises the
// §8 at-most-once commit invariant for the vector index: re-embedding a
// version must wipe every embedding belonging to one of its chunks before
// the new vectors land, inside the same transaction.
func TestReplaceAllForVersion_DeletesThenInsertsInOneTransaction(t *testing.T) {
	repo, mock, done := newEmbeddingRepoWithMock(t)
	defer done()

	versionID := "v-1"
	embeddings := []models.ChunkEmbedding{
		{ChunkID: "c-1", Vector: make([]float32, 1536), Model: "gemini-embedding-001"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM chunk_embeddings").
		WithArgs(versionID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare("INSERT INTO chunk_embeddings")
	mock.ExpectExec("INSERT INTO chunk_embeddings").
		WithArgs("c-1", sqlmock.AnyArg(), "gemini-embedding-001").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.ReplaceAllForVersion(context.Background(), versionID, embeddings); err != nil {
		t.Fatalf("ReplaceAllForVersion() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// TestReplaceAllForVersion_RunningTwiceIsIdempotent demonstrates that
// re-running ReplaceAllForVersion against the same version produces the
// identical delete-then-insert shape each time.
func TestReplaceAllForVersion_RunningTwiceIsIdempotent(t *testing.T) {
	repo, mock, done := newEmbeddingRepoWithMock(t)
	defer done()

	versionID := "v-2"
	embeddings := []models.ChunkEmbedding{
		{ChunkID: "c-2", Vector: make([]float32, 1536), Model: "gemini-embedding-001"},
	}

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM chunk_embeddings").
			WithArgs(versionID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectPrepare("INSERT INTO chunk_embeddings")
		mock.ExpectExec("INSERT INTO chunk_embeddings").
			WithArgs("c-2", sqlmock.AnyArg(), "gemini-embedding-001").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		if err := repo.ReplaceAllForVersion(context.Background(), versionID, embeddings); err != nil {
			t.Fatalf("ReplaceAllForVersion() run %d error = %v", i, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestReplaceAllForVersion_RollsBackOnInsertFailure(t *testing.T) {
	repo, mock, done := newEmbeddingRepoWithMock(t)
	defer done()

	versionID := "v-3"
	embeddings := []models.ChunkEmbedding{
		{ChunkID: "c-3", Vector: make([]float32, 1536), Model: "gemini-embedding-001"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM chunk_embeddings").
		WithArgs(versionID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectPrepare("INSERT INTO chunk_embeddings")
	mock.ExpectExec("INSERT INTO chunk_embeddings").
		WithArgs("c-3", sqlmock.AnyArg(), "gemini-embedding-001").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	if err := repo.ReplaceAllForVersion(context.Background(), versionID, embeddings); err == nil {
		t.Fatalf("expected error from failed insert")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
