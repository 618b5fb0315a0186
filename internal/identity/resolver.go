// Package identity turns free-text identifiers into accounts that can receive credits
package identity

import (
	"context"
	"log/slog"

	"github.com/hydrogen-credit-ledger/internal/domain/account"
)

// Resolver looks up accounts by username, factory id or account id in one store query
type Resolver struct {
	accounts account.Repository
	logger   *slog.Logger
}

func NewResolver(logger *slog.Logger, accounts account.Repository) *Resolver {
	return &Resolver{
		accounts: accounts,
		logger:   logger,
	}
}

// Resolve returns the matching account. ErrAccountNotFound when nothing matches,
// ErrMissingWallet when the match has no wallet yet.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (*account.Account, error) {
	acc, err := r.accounts.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if !acc.HasWallet() {
		r.logger.Info("Resolved account has no wallet", "account_id", acc.ID)
		return nil, account.ErrMissingWallet{AccountID: acc.ID}
	}
	return acc, nil
}
