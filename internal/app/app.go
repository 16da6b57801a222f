// Package app wires the external HTTP surface (§6) on top of the
// ingestion core's repositories and gateways. It is thin glue — the real
// engineering lives in internal/ingest, internal/jobs, and internal/outbox,
// driven separately by cmd/contexta's run-worker subcommand.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/markdave123-py/Contexta/internal/config"
	"github.com/markdave123-py/Contexta/internal/embedding"
	"github.com/markdave123-py/Contexta/internal/objectstore"
	"github.com/markdave123-py/Contexta/internal/repo"
	"github.com/markdave123-py/Contexta/internal/repo/postgres"
)

// App owns the process-lifetime resources the HTTP surface depends on.
type App struct {
	DB       *sql.DB
	Embedder *embedding.Client
	Server   *Server
}

// NewApp opens the database, wires the object store and embedding clients,
// and builds the HTTP server. It does not start listening.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	db, err := postgres.Open(appCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("app: open database: %w", err)
	}
	if err := postgres.EnsureBootstrapped(appCtx, db); err != nil {
		return nil, fmt.Errorf("app: bootstrap schema: %w", err)
	}
	logger.Info("database initialized and bootstrapped")

	objects, err := objectstore.NewS3Client(appCtx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app: object store client: %w", err)
	}
	logger.Info("object store client initialized")

	embedder, err := embedding.New(appCtx, embedding.DefaultConfig(cfg.EmbeddingsAPIKey, cfg.EmbeddingsModel))
	if err != nil {
		return nil, fmt.Errorf("app: embedding client: %w", err)
	}

	repos := repo.Repositories{
		Documents:  postgres.NewDocumentRepository(db),
		Versions:   postgres.NewVersionRepository(db),
		Jobs:       postgres.NewJobRepository(db),
		Pages:      postgres.NewPageRepository(db),
		Chunks:     postgres.NewChunkRepository(db),
		Embeddings: postgres.NewEmbeddingRepository(db),
		Outbox:     postgres.NewOutboxRepository(db),
		Users:      postgres.NewUserRepository(db),
	}

	server := NewServer(cfg, repos, objects, embedder)

	return &App{DB: db, Embedder: embedder, Server: server}, nil
}

// Close releases process-lifetime resources.
func (a *App) Close() {
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
