package service

import (
	"context"

	"github.com/hydrogen-credit-ledger/internal/dispatcher"
	"github.com/hydrogen-credit-ledger/internal/domain/account"
	"github.com/hydrogen-credit-ledger/internal/domain/token"
	"github.com/hydrogen-credit-ledger/internal/journaling"
	"github.com/hydrogen-credit-ledger/internal/ledger"
	"github.com/hydrogen-credit-ledger/internal/readmodel"
)

// AccountService defines the interface for account operations
type AccountService interface {
	// Register validates the input and stores a new account; producers get a factory id
	// Returns ErrDuplicateAccount if the username, email or wallet is taken
	Register(ctx context.Context, req RegisterRequest) (*account.Account, error)

	// AssignWallet sets the wallet of accountID. Callers may change their own wallet,
	// regulators may change any.
	AssignWallet(ctx context.Context, callerID, accountID, wallet string) (*account.Account, error)

	// Me returns the caller's account
	// Returns ErrAccountNotFound if the token subject no longer exists
	Me(ctx context.Context, callerID string) (*account.Account, error)
}

// RegisterRequest is the account registration input
type RegisterRequest struct {
	Username    string
	Email       string
	Role        account.Role
	FactoryName string
	Wallet      string
}

// CreditService is the role-gated command surface served by the dispatcher
type CreditService interface {
	Mint(ctx context.Context, callerID, factoryID string, quantity int) (*dispatcher.MintBatch, error)
	Transfer(ctx context.Context, callerID string, tokenID uint64, to string) (*dispatcher.TransferResult, error)
	TransferByIdentifier(ctx context.Context, callerID string, tokenID uint64, identifier string) (*dispatcher.TransferResult, error)
	Retire(ctx context.Context, callerID string, tokenID uint64) (*ledger.TxResult, error)

	ListTokens(ctx context.Context, callerID string, q readmodel.ListQuery) (*readmodel.Dashboard, error)
	OwnedTokens(ctx context.Context, callerID string) ([]readmodel.Credit, error)
	TokenDetails(ctx context.Context, callerID string, tokenID uint64) (*readmodel.Credit, error)
	TokenHistory(ctx context.Context, callerID string, tokenID uint64) ([]token.OwnershipEntry, error)
	Stats(ctx context.Context, callerID string) (*readmodel.Stats, error)
	Search(ctx context.Context, callerID string, q readmodel.SearchQuery) (*readmodel.SearchResult, error)
	Factories(ctx context.Context, callerID string) ([]readmodel.Factory, error)
	ResolveRecipient(ctx context.Context, callerID, identifier string) (*account.Account, error)
	Transactions(ctx context.Context, callerID string, page, perPage int) (*journaling.Page, error)
}

var _ CreditService = (*dispatcher.Dispatcher)(nil)
