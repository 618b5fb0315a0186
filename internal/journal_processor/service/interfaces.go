package service

import (
	"context"

	"github.com/hydrogen-credit-ledger/internal/domain/journal"
)

// RecordService stores journal records arriving from replay or reconciliation
type RecordService interface {
	// StoreRecord inserts rec unless a record with its hash exists. Duplicates are not errors.
	StoreRecord(ctx context.Context, rec *journal.Record) error
}
