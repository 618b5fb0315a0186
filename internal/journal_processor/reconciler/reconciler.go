// Package reconciler backfills the journal from ledger event logs. It covers
// mints whose token id could not be resolved and direct journal writes that
// were lost together with their replay message.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hydrogen-credit-ledger/internal/config"
	"github.com/hydrogen-credit-ledger/internal/domain/cursor"
	"github.com/hydrogen-credit-ledger/internal/domain/journal"
	"github.com/hydrogen-credit-ledger/internal/domain/shared"
	"github.com/hydrogen-credit-ledger/internal/journal_processor/service"
	"github.com/hydrogen-credit-ledger/internal/ledger"
)

// CursorName identifies the reconciler's position in the cursor store
const CursorName = "journal_reconciler"

// EventSource is the part of the ledger client the reconciler reads
type EventSource interface {
	LatestBlock(ctx context.Context) (uint64, error)
	GetLedgerEvents(ctx context.Context, from, to uint64) ([]ledger.Event, error)
}

// Reconciler scans confirmed blocks in windows and stores any missing journal record
type Reconciler struct {
	events        EventSource
	cursors       cursor.Repository
	recordService service.RecordService
	logger        *slog.Logger
	pollInterval  time.Duration
	batchSize     uint64
	startBlock    uint64
	confirmations uint64
}

func NewReconciler(
	cfg *config.ReconcilerConfig,
	events EventSource,
	cursors cursor.Repository,
	recordService service.RecordService,
	logger *slog.Logger,
) *Reconciler {
	batchSize := cfg.BlockBatchSize
	if batchSize == 0 {
		batchSize = 1
	}
	return &Reconciler{
		events:        events,
		cursors:       cursors,
		recordService: recordService,
		logger:        logger,
		pollInterval:  cfg.PollingInterval,
		batchSize:     batchSize,
		startBlock:    cfg.StartBlock,
		confirmations: cfg.Confirmations,
	}
}

// Start runs a pass on every tick until ctx is canceled
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("Starting journal reconciler",
		"poll_interval", r.pollInterval.String(),
		"block_batch_size", r.batchSize,
		"confirmations", r.confirmations,
	)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Journal reconciler stopping due to context cancellation.")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("Reconciliation pass failed", "error", err)
			}
		}
	}
}

// RunOnce scans from the cursor up to the confirmed head and returns how many events
// it handed to the record service. The cursor moves only past fully stored windows.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	cur, err := r.cursors.Get(ctx, CursorName)
	if err != nil {
		return 0, fmt.Errorf("failed to read reconciler cursor: %w", err)
	}
	from := cur.Next()
	if cur.UpdatedAt.IsZero() && r.startBlock > from {
		from = r.startBlock
	}

	latest, err := r.events.LatestBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read latest block: %w", err)
	}
	if latest < r.confirmations {
		return 0, nil
	}
	head := latest - r.confirmations
	if from > head {
		r.logger.Debug("Reconciler is up to date", "next_block", from, "head", head)
		return 0, nil
	}

	processed := 0
	for from <= head {
		to := min(from+r.batchSize-1, head)

		events, err := r.events.GetLedgerEvents(ctx, from, to)
		if err != nil {
			return processed, fmt.Errorf("failed to read ledger events %d-%d: %w", from, to, err)
		}
		for _, ev := range events {
			if err := r.recordService.StoreRecord(ctx, recordFromEvent(ev)); err != nil {
				return processed, fmt.Errorf("failed to reconcile %s: %w", ev.TransactionHash, err)
			}
			processed++
		}

		if err := r.cursors.Set(ctx, CursorName, to); err != nil {
			return processed, fmt.Errorf("failed to advance reconciler cursor to %d: %w", to, err)
		}
		r.logger.Info("Reconciled block window", "from", from, "to", to, "events", len(events))
		from = to + 1
	}
	return processed, nil
}

func recordFromEvent(ev ledger.Event) *journal.Record {
	return &journal.Record{
		TransactionHash: ev.TransactionHash,
		Operation:       ev.Operation,
		TokenID:         ev.TokenID,
		From:            ev.From,
		To:              ev.To,
		FactoryID:       ev.FactoryID,
		GasUsed:         ev.GasUsed,
		BlockNumber:     ev.BlockNumber,
		Source:          shared.RecordSourceReconciler,
		ObservedAt:      ev.ObservedAt,
	}
}
