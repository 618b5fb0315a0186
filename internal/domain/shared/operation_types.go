package shared

import "errors"

var ErrInvalidOperation = errors.New("invalid ledger operation")

// Operation defines the ledger mutations the journal records
type Operation string

const (
	OperationMint     Operation = "MINT"
	OperationTransfer Operation = "TRANSFER"
	OperationRetire   Operation = "RETIRE"
)

func (o Operation) Valid() bool {
	switch o {
	case OperationMint, OperationTransfer, OperationRetire:
		return true
	}
	return false
}

// RecordSource defines how a journal record reached the store
type RecordSource string

const (
	RecordSourceDirect     RecordSource = "DIRECT"     // Written by the command path
	RecordSourceReplay     RecordSource = "REPLAY"     // Replayed from the journal topic
	RecordSourceReconciler RecordSource = "RECONCILER" // Backfilled from ledger events
)
