package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hydrogen-credit-ledger/internal/domain/journal"
)

// JournalRecordService writes records straight to the journal store
type JournalRecordService struct {
	repo   journal.Repository
	logger *slog.Logger
}

func NewJournalRecordService(repo journal.Repository, logger *slog.Logger) *JournalRecordService {
	return &JournalRecordService{
		repo:   repo,
		logger: logger,
	}
}

// StoreRecord inserts idempotently by transaction hash
func (s *JournalRecordService) StoreRecord(ctx context.Context, rec *journal.Record) error {
	_, inserted, err := s.repo.Insert(ctx, rec)
	if err != nil {
		return fmt.Errorf("failed to store journal record %s: %w", rec.TransactionHash, err)
	}

	if inserted {
		s.logger.Info("Journal record stored",
			"transaction_hash", rec.TransactionHash,
			"operation", rec.Operation,
			"token_id", rec.TokenID,
			"source", rec.Source,
		)
	} else {
		s.logger.Debug("Journal record already present", "transaction_hash", rec.TransactionHash, "source", rec.Source)
	}
	return nil
}
