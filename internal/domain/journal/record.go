package journal

import (
	"errors"
	"strings"
	"time"

	"github.com/hydrogen-credit-ledger/internal/domain/shared"
)

var (
	ErrEmptyHash     = errors.New("transaction hash cannot be empty")
	ErrMissingFields = errors.New("record is missing counterparty fields for its operation")
)

// Record is the local trace of one confirmed ledger mutation
type Record struct {
	TransactionHash    string              `json:"transaction_hash" bson:"transaction_hash"`
	Operation          shared.Operation    `json:"operation" bson:"operation"`
	TokenID            uint64              `json:"token_id" bson:"token_id"`
	From               *string             `json:"from,omitempty" bson:"from,omitempty"`
	To                 *string             `json:"to,omitempty" bson:"to,omitempty"`
	FactoryID          *string             `json:"factory_id,omitempty" bson:"factory_id,omitempty"`
	InitiatorAccountID string              `json:"initiator_account_id,omitempty" bson:"initiator_account_id,omitempty"`
	RecipientAccountID *string             `json:"recipient_account_id,omitempty" bson:"recipient_account_id,omitempty"`
	GasUsed            uint64              `json:"gas_used" bson:"gas_used"`
	BlockNumber        uint64              `json:"block_number" bson:"block_number"`
	Source             shared.RecordSource `json:"source" bson:"source"`
	ObservedAt         time.Time           `json:"observed_at" bson:"observed_at"`
}

// Validate checks the per-operation shape of a record before it is stored
func (r *Record) Validate() error {
	if strings.TrimSpace(r.TransactionHash) == "" {
		return ErrEmptyHash
	}
	switch r.Operation {
	case shared.OperationMint:
		if r.To == nil {
			return ErrMissingFields
		}
	case shared.OperationTransfer:
		if r.From == nil || r.To == nil {
			return ErrMissingFields
		}
	case shared.OperationRetire:
	default:
		return shared.ErrInvalidOperation
	}
	return nil
}

// Event converts the record into its replay message
func (r *Record) Event(correlationID, reason string) shared.JournalEvent {
	return shared.JournalEvent{
		TransactionHash:    r.TransactionHash,
		Operation:          r.Operation,
		TokenID:            r.TokenID,
		From:               r.From,
		To:                 r.To,
		FactoryID:          r.FactoryID,
		InitiatorAccountID: r.InitiatorAccountID,
		RecipientAccountID: r.RecipientAccountID,
		GasUsed:            r.GasUsed,
		BlockNumber:        r.BlockNumber,
		ObservedAt:         r.ObservedAt,
		CorrelationID:      correlationID,
		FailureReason:      reason,
		Timestamp:          time.Now().UTC(),
	}
}

// FromEvent rebuilds a record from a replay message
func FromEvent(e shared.JournalEvent) *Record {
	return &Record{
		TransactionHash:    e.TransactionHash,
		Operation:          e.Operation,
		TokenID:            e.TokenID,
		From:               e.From,
		To:                 e.To,
		FactoryID:          e.FactoryID,
		InitiatorAccountID: e.InitiatorAccountID,
		RecipientAccountID: e.RecipientAccountID,
		GasUsed:            e.GasUsed,
		BlockNumber:        e.BlockNumber,
		Source:             shared.RecordSourceReplay,
		ObservedAt:         e.ObservedAt,
	}
}
