package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hydrogen-credit-ledger/internal/domain/journal"
	"github.com/panjf2000/ants/v2"
)

// WorkerPoolRecordService bounds concurrent journal writes with an ants pool
type WorkerPoolRecordService struct {
	baseService RecordService
	pool        *ants.Pool
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolRecordService(
	baseService RecordService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolRecordService, error) {
	// ants treats a non-positive size as unbounded
	if config.Size <= 0 {
		return nil, fmt.Errorf("worker pool size must be positive, got %d", config.Size)
	}
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolRecordService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// StoreRecord runs the write on a pool worker and waits for its result
func (s *WorkerPoolRecordService) StoreRecord(ctx context.Context, rec *journal.Record) error {
	// Buffered so a worker never blocks on a caller that gave up
	resultChan := make(chan error, 1)
	recordCopy := *rec

	err := s.pool.Submit(func() {
		resultChan <- s.baseService.StoreRecord(ctx, &recordCopy)
	})
	if err != nil {
		s.logger.Error("Failed to submit journal record to worker pool",
			"transaction_hash", rec.TransactionHash,
			"error", err,
		)
		return err
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolRecordService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolRecordService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolRecordService) Capacity() int {
	return s.pool.Cap()
}
