// Package journaling writes the local audit trail of confirmed ledger mutations.
// The ledger stays the source of truth: journal failures never fail a command.
package journaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hydrogen-credit-ledger/internal/domain/journal"
	"github.com/hydrogen-credit-ledger/internal/domain/shared"
	"github.com/hydrogen-credit-ledger/internal/ledger"
	"github.com/hydrogen-credit-ledger/internal/platform/messaging/producers"
)

// ErrJournal marks a failed journal write after a successful ledger mutation
var ErrJournal = errors.New("journal write failed")

const detachedWriteTimeout = 10 * time.Second

// Recorder writes journal records and hands failed writes to the replay topic
type Recorder struct {
	repo      journal.Repository
	publisher producers.MessagePublisher // nil disables replay
	logger    *slog.Logger
	now       func() time.Time
}

func NewRecorder(logger *slog.Logger, repo journal.Repository, publisher producers.MessagePublisher) *Recorder {
	return &Recorder{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// MintRecord describes a confirmed mint
func MintRecord(res *ledger.MintResult, factoryID, initiatorID string) *journal.Record {
	to := res.To
	return &journal.Record{
		TransactionHash:    res.TransactionHash,
		Operation:          shared.OperationMint,
		TokenID:            res.TokenID,
		To:                 &to,
		FactoryID:          &factoryID,
		InitiatorAccountID: initiatorID,
		GasUsed:            res.GasUsed,
		BlockNumber:        res.BlockNumber,
	}
}

// TransferRecord describes a confirmed transfer
func TransferRecord(res *ledger.TxResult, tokenID uint64, from, to, initiatorID string) *journal.Record {
	return &journal.Record{
		TransactionHash:    res.TransactionHash,
		Operation:          shared.OperationTransfer,
		TokenID:            tokenID,
		From:               &from,
		To:                 &to,
		InitiatorAccountID: initiatorID,
		GasUsed:            res.GasUsed,
		BlockNumber:        res.BlockNumber,
	}
}

// RetireRecord describes a confirmed retirement
func RetireRecord(res *ledger.TxResult, tokenID uint64, initiatorID string) *journal.Record {
	return &journal.Record{
		TransactionHash:    res.TransactionHash,
		Operation:          shared.OperationRetire,
		TokenID:            tokenID,
		InitiatorAccountID: initiatorID,
		GasUsed:            res.GasUsed,
		BlockNumber:        res.BlockNumber,
	}
}

// Record stores rec. A second write for the same hash returns the stored record.
func (r *Recorder) Record(ctx context.Context, rec *journal.Record) (*journal.Record, error) {
	if rec.Source == "" {
		rec.Source = shared.RecordSourceDirect
	}
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = r.now()
	}

	stored, created, err := r.repo.Insert(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJournal, err)
	}
	if !created {
		r.logger.Debug("Journal record already present",
			"transaction_hash", rec.TransactionHash,
			"source", string(stored.Source))
	}
	return stored, nil
}

// RecordBestEffort never fails. A failed write is published for replay; when
// that fails too the record is logged as lost and rec is returned unsaved.
func (r *Recorder) RecordBestEffort(ctx context.Context, rec *journal.Record, correlationID string) *journal.Record {
	// The ledger already confirmed; a caller hanging up must not drop the journal write
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedWriteTimeout)
	defer cancel()

	stored, err := r.Record(ctx, rec)
	if err == nil {
		return stored
	}

	r.logger.Error("Journal write failed, queueing for replay",
		"transaction_hash", rec.TransactionHash,
		"operation", string(rec.Operation),
		"correlation_id", correlationID,
		"error", err)

	if r.publisher == nil {
		r.logger.Error("Journal record lost, replay disabled",
			"transaction_hash", rec.TransactionHash)
		return rec
	}
	if pubErr := r.publisher.Publish(ctx, rec.TransactionHash, rec.Event(correlationID, err.Error())); pubErr != nil {
		r.logger.Error("Journal record lost, replay publish failed",
			"transaction_hash", rec.TransactionHash,
			"error", pubErr)
	}
	return rec
}

// AttachRecipient links a resolved account to a transfer record at most once
func (r *Recorder) AttachRecipient(ctx context.Context, hash, accountID string) error {
	applied, err := r.repo.AttachRecipient(ctx, hash, accountID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrJournal, err)
	}
	if !applied {
		r.logger.Debug("Recipient already attached", "transaction_hash", hash)
	}
	return nil
}

func (r *Recorder) GetByHash(ctx context.Context, hash string) (*journal.Record, error) {
	return r.repo.GetByHash(ctx, hash)
}

func (r *Recorder) Recent(ctx context.Context, limit int) ([]*journal.Record, error) {
	return r.repo.Recent(ctx, limit)
}

func (r *Recorder) Count(ctx context.Context) (int64, error) {
	return r.repo.Count(ctx)
}

// Page is one page of journal records
type Page struct {
	Records []*journal.Record `json:"records"`
	Total   int64             `json:"total"`
	Page    int               `json:"page"`
	PerPage int               `json:"per_page"`
}

// ListByAccount pages through an account's records; an empty accountID lists all
func (r *Recorder) ListByAccount(ctx context.Context, accountID string, page, perPage int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	total, err := r.repo.CountByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	offset := math.MaxInt
	if page-1 <= math.MaxInt/perPage {
		offset = (page - 1) * perPage
	}
	records, err := r.repo.ListByAccount(ctx, accountID, perPage, offset)
	if err != nil {
		return nil, err
	}
	return &Page{Records: records, Total: total, Page: page, PerPage: perPage}, nil
}
