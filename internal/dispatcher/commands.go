// Package dispatcher authorizes caller commands by role and runs them against
// the ledger, the journal and the read model.
package dispatcher

import (
	"errors"

	"github.com/hydrogen-credit-ledger/internal/domain/account"
)

var (
	ErrUnauthorized    = errors.New("role is not allowed to run this command")
	ErrInvalidQuantity = errors.New("mint quantity out of range")
	ErrInvalidAddress  = errors.New("recipient must be a 20-byte hex address")
	ErrFactoryMismatch = errors.New("producers may only mint under their own factory id")
	ErrNoRecipient     = errors.New("recipient identifier cannot be empty")
)

// Command names every operation the dispatcher runs
type Command string

const (
	CommandMint             Command = "MINT"
	CommandTransfer         Command = "TRANSFER"
	CommandRetire           Command = "RETIRE"
	CommandStats            Command = "STATS"
	CommandFactoryList      Command = "FACTORY_LIST"
	CommandSearch           Command = "SEARCH"
	CommandListTokens       Command = "LIST_TOKENS"
	CommandTokenDetails     Command = "TOKEN_DETAILS"
	CommandResolveRecipient Command = "RESOLVE_RECIPIENT"
	CommandTransactions     Command = "TRANSACTIONS"
)

// State is a step of a command's lifecycle
type State string

const (
	StateReceived   State = "RECEIVED"
	StateAuthorized State = "AUTHORIZED"
	StateRejected   State = "REJECTED"
	StateExecuting  State = "EXECUTING"
	StateSucceeded  State = "SUCCEEDED"
	StateFailed     State = "FAILED"
)

// Allowed is the authorization table. Ownership of a token is enforced by the ledger.
func Allowed(role account.Role, cmd Command) bool {
	switch role {
	case account.RoleProducer:
		switch cmd {
		case CommandMint, CommandTransfer, CommandRetire,
			CommandListTokens, CommandTokenDetails, CommandResolveRecipient, CommandTransactions:
			return true
		}
	case account.RoleBuyer:
		switch cmd {
		case CommandTransfer, CommandRetire,
			CommandListTokens, CommandTokenDetails, CommandResolveRecipient, CommandTransactions:
			return true
		}
	case account.RoleRegulator:
		switch cmd {
		case CommandTransfer, CommandRetire, CommandStats, CommandFactoryList, CommandSearch,
			CommandListTokens, CommandTokenDetails, CommandResolveRecipient, CommandTransactions:
			return true
		}
	case account.RoleCertifier:
		switch cmd {
		case CommandTransfer, CommandRetire, CommandFactoryList, CommandSearch,
			CommandListTokens, CommandTokenDetails, CommandResolveRecipient, CommandTransactions:
			return true
		}
	}
	return false
}
