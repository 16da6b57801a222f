// Command contexta is the operational CLI for the ingestion core (§6):
// migrate applies the database schema, run-worker starts the outbox
// dispatcher/coordinator loop, and verify-db checks the schema is reachable.
// Grounded on the teacher's cmd/api/main.go signal-driven shutdown pattern.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/markdave123-py/Contexta/internal/app"
	"github.com/markdave123-py/Contexta/internal/config"
	"github.com/markdave123-py/Contexta/internal/embedding"
	"github.com/markdave123-py/Contexta/internal/ingest"
	"github.com/markdave123-py/Contexta/internal/objectstore"
	"github.com/markdave123-py/Contexta/internal/outbox"
	"github.com/markdave123-py/Contexta/internal/parser"
	"github.com/markdave123-py/Contexta/internal/repo"
	"github.com/markdave123-py/Contexta/internal/repo/postgres"
	"github.com/markdave123-py/Contexta/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: contexta <migrate|run-worker|serve|verify-db>")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	cfg := config.MustLoad(logger)

	var err error
	switch os.Args[1] {
	case "migrate":
		err = runMigrate(ctx, cfg, logger)
	case "verify-db":
		err = runVerifyDB(ctx, cfg, logger)
	case "run-worker":
		err = runWorker(ctx, cfg, logger)
	case "serve":
		err = runServe(ctx, cfg, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		logger.Error("contexta exited with error", "subcommand", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func runMigrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.EnsureBootstrapped(ctx, db); err != nil {
		return err
	}
	logger.Info("schema bootstrapped")
	return nil
}

func runVerifyDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Verify(ctx, db); err != nil {
		return err
	}
	logger.Info("schema verified")
	return nil
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.EnsureBootstrapped(ctx, db); err != nil {
		return err
	}

	objects, err := objectstore.NewS3Client(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("contexta: object store client: %w", err)
	}

	embedder, err := embedding.New(ctx, embedding.DefaultConfig(cfg.EmbeddingsAPIKey, cfg.EmbeddingsModel))
	if err != nil {
		return fmt.Errorf("contexta: embedding client: %w", err)
	}
	defer embedder.Close()

	repos := repo.Repositories{
		Documents:  postgres.NewDocumentRepository(db),
		Versions:   postgres.NewVersionRepository(db),
		Jobs:       postgres.NewJobRepository(db),
		Pages:      postgres.NewPageRepository(db),
		Chunks:     postgres.NewChunkRepository(db),
		Embeddings: postgres.NewEmbeddingRepository(db),
		Outbox:     postgres.NewOutboxRepository(db),
	}

	coordinator := ingest.New(repos, objects, parser.NewRouter(), embedder, logger)

	hostname, _ := os.Hostname()
	outboxCfg := outbox.DefaultConfig(fmt.Sprintf("%s:%d", hostname, os.Getpid()))
	outboxCfg.Concurrency = cfg.WorkerConcurrency

	pool := worker.New(outboxCfg, repos.Outbox, coordinator, logger)

	logger.Info("contexta worker running", "concurrency", outboxCfg.Concurrency)
	return pool.Run(ctx)
}

// runServe starts the thin external HTTP surface (§6: upload init/complete,
// document CRUD, job get, citation retrieval) alongside the auth façade.
// Ingestion itself is driven separately by the run-worker subcommand.
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	application, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("contexta: startup: %w", err)
	}
	defer application.Close()

	go application.Server.Start()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return application.Server.Shutdown(shutdownCtx)
}
