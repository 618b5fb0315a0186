// Package components assembles the journal processor's services from configuration.
package components

import (
	"log/slog"

	"github.com/hydrogen-credit-ledger/internal/config"
	"github.com/hydrogen-credit-ledger/internal/domain/cursor"
	"github.com/hydrogen-credit-ledger/internal/domain/journal"
	"github.com/hydrogen-credit-ledger/internal/journal_processor/consumer"
	"github.com/hydrogen-credit-ledger/internal/journal_processor/reconciler"
	"github.com/hydrogen-credit-ledger/internal/journal_processor/service"
	"github.com/hydrogen-credit-ledger/internal/platform/messaging/producers"
)

// Components are the running parts of the journal processor
type Components struct {
	RecordService service.RecordService
	Handler       *consumer.JournalEventHandler
	Reconciler    *reconciler.Reconciler

	pool *service.WorkerPoolRecordService
}

// CreateRecordService wraps the journal writer in a worker pool, falling back to
// direct writes if the pool cannot be created.
func CreateRecordService(repo journal.Repository, logger *slog.Logger, cfg *config.Config) (service.RecordService, *service.WorkerPoolRecordService) {
	baseService := service.NewJournalRecordService(repo, logger.With("component", "record_service"))

	workerPoolService, err := service.NewWorkerPoolRecordService(
		baseService,
		service.WorkerPoolConfig{
			Size: cfg.WorkerPool.Size,
		},
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool service, falling back to base service", "error", err)
		return baseService, nil
	}

	logger.Info("Created worker pool record service", "pool_size", cfg.WorkerPool.Size)
	return workerPoolService, workerPoolService
}

// Create wires the replay handler and the reconciler around one record service.
// dlq may be nil.
func Create(
	cfg *config.Config,
	repo journal.Repository,
	cursors cursor.Repository,
	events reconciler.EventSource,
	dlq producers.DeadLetterPublisher,
	logger *slog.Logger,
) *Components {
	recordService, pool := CreateRecordService(repo, logger, cfg)

	return &Components{
		RecordService: recordService,
		Handler:       consumer.NewJournalEventHandler(logger.With("component", "journal_event_handler"), recordService, dlq),
		Reconciler:    reconciler.NewReconciler(&cfg.Reconciler, events, cursors, recordService, logger.With("component", "reconciler")),
		pool:          pool,
	}
}

// Shutdown releases the worker pool, if one was created
func (c *Components) Shutdown() {
	if c.pool != nil {
		c.pool.Shutdown()
	}
}
