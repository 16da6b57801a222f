// Package postgres implements the C10 repository interfaces
// (internal/repo) against a PostgreSQL-compatible database via database/sql
// and the pgx stdlib driver, matching the teacher's
// internal/core/database/client_database_pgx.go style. Grounded also on
// kk7453603-AIAssistent/internal/infrastructure/repository/postgres/document_repository.go
// for the advisory-lock-guarded bootstrap, replacing the teacher's
// unguarded EnsureBootstrapped (which races under concurrent worker startup).
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed schema/initdb.sql
var schemaFS embed.FS

// schemaLockID is an arbitrary, stable advisory lock key serializing schema
// bootstrap across concurrent api/worker process startups.
const schemaLockID = int64(2026021001)

// Open dials the database and ensures the pool settings match the teacher's
// conservative defaults for a long-running service.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// EnsureBootstrapped applies the schema once, serialized by a transaction-scoped
// advisory lock so two processes booting at once don't run the DDL twice.
func EnsureBootstrapped(ctx context.Context, db *sql.DB) error {
	bootCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	tx, err := db.BeginTx(bootCtx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin bootstrap tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(bootCtx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("postgres: acquire schema lock: %w", err)
	}

	var exists bool
	err = tx.QueryRowContext(bootCtx, `
		SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'contexta_meta')
	`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("postgres: meta table check: %w", err)
	}

	if !exists {
		if err := execSchema(bootCtx, tx); err != nil {
			return err
		}
	} else {
		var hasVersion bool
		if err := tx.QueryRowContext(bootCtx, `SELECT EXISTS (SELECT 1 FROM contexta_meta WHERE version = 1)`).Scan(&hasVersion); err != nil {
			return fmt.Errorf("postgres: meta version check: %w", err)
		}
		if !hasVersion {
			if err := execSchema(bootCtx, tx); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit bootstrap: %w", err)
	}
	return nil
}

func execSchema(ctx context.Context, tx *sql.Tx) error {
	sqlBytes, err := schemaFS.ReadFile("schema/initdb.sql")
	if err != nil {
		return fmt.Errorf("postgres: read initdb.sql: %w", err)
	}
	if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
		return fmt.Errorf("postgres: exec schema: %w", err)
	}
	return nil
}

// Verify runs a cheap read against every core table, used by the
// verify-db CLI subcommand (§6) to confirm the schema is reachable.
func Verify(ctx context.Context, db *sql.DB) error {
	tables := []string{
		"documents", "document_versions", "ingestion_jobs",
		"document_pages", "document_chunks", "chunk_embeddings", "event_outbox",
	}
	for _, t := range tables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SELECT 1 FROM %s LIMIT 0", t)); err != nil {
			return fmt.Errorf("postgres: verify table %s: %w", t, err)
		}
	}
	return nil
}
