// Package worker wires the outbox dispatcher to the ingestion coordinator
// behind a single managed goroutine, in the shape of the teacher's
// DocumentIngestor.Start (internal/core/ingestor_engine/ingestor_service.go):
// one long-running consumer draining a stream of work, reporting its exit
// through an errgroup so the caller can wait on a clean shutdown instead of
// firing the goroutine and forgetting about it.
package worker

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Contexta/internal/ingest"
	"github.com/markdave123-py/Contexta/internal/outbox"
	"github.com/markdave123-py/Contexta/internal/repo"
)

// Pool runs the outbox dispatcher, handing every leased
// document.ingestion_requested event to the ingestion coordinator (§5
// "bounded worker count"). The bound itself lives in outbox.Config.Concurrency;
// Pool's job is lifecycle, not scheduling.
type Pool struct {
	dispatcher *outbox.Dispatcher
	logger     *slog.Logger
}

// New builds a Pool around coordinator.HandleEvent as the outbox Handler.
func New(cfg outbox.Config, events repo.Outbox, coordinator *ingest.Coordinator, logger *slog.Logger) *Pool {
	dispatcher := outbox.New(cfg, events, logger, coordinator.HandleEvent)
	return &Pool{dispatcher: dispatcher, logger: logger}
}

// Run starts the dispatcher loop and blocks until ctx is cancelled, returning
// once the dispatcher has stopped accepting new work. Grounded on the
// teacher's errgroup.WithContext fan-out style
// (internal/core/ingestor_engine/ingestor_service.go's processOne), adapted
// from a per-document pipeline group to a single supervised dispatcher loop.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.dispatcher.Run(gctx)
		return nil
	})
	p.logger.Info("worker pool started")
	err := g.Wait()
	p.logger.Info("worker pool stopped")
	return err
}
