package shared

import (
	"time"
)

// JournalEvent is the Kafka message carrying a journal record whose direct write failed
type JournalEvent struct {
	TransactionHash    string    `json:"transaction_hash"`
	Operation          Operation `json:"operation"`
	TokenID            uint64    `json:"token_id"`
	From               *string   `json:"from,omitempty"`
	To                 *string   `json:"to,omitempty"`
	FactoryID          *string   `json:"factory_id,omitempty"`
	InitiatorAccountID string    `json:"initiator_account_id,omitempty"`
	RecipientAccountID *string   `json:"recipient_account_id,omitempty"`
	GasUsed            uint64    `json:"gas_used"`
	BlockNumber        uint64    `json:"block_number"`
	ObservedAt         time.Time `json:"observed_at"`
	CorrelationID      string    `json:"correlation_id,omitempty"`
	FailureReason      string    `json:"failure_reason,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}
