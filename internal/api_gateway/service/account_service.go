package service

import (
	"context"
	"log/slog"

	"github.com/hydrogen-credit-ledger/internal/dispatcher"
	"github.com/hydrogen-credit-ledger/internal/domain/account"
)

// AccountServiceImpl implements the AccountService interface
type AccountServiceImpl struct {
	accountRepo account.Repository
	logger      *slog.Logger
}

// NewAccountService creates a new account service
func NewAccountService(logger *slog.Logger, accountRepo account.Repository) AccountService {
	return &AccountServiceImpl{
		accountRepo: accountRepo,
		logger:      logger,
	}
}

// Register builds the account and lets the repository assign the factory id
func (s *AccountServiceImpl) Register(ctx context.Context, req RegisterRequest) (*account.Account, error) {
	acc, err := account.NewAccount(req.Username, req.Email, req.Role, req.FactoryName, req.Wallet)
	if err != nil {
		return nil, err
	}

	if err := s.accountRepo.Create(ctx, acc); err != nil {
		return nil, err
	}

	s.logger.Info("Account registered", "account_id", acc.ID, "role", acc.Role, "factory_id", acc.FactoryID)
	return acc, nil
}

// AssignWallet checks the caller may edit the target, then stores the checksummed wallet
func (s *AccountServiceImpl) AssignWallet(ctx context.Context, callerID, accountID, wallet string) (*account.Account, error) {
	normalized, err := account.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}

	caller, err := s.accountRepo.GetByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if caller.ID != accountID && caller.Role != account.RoleRegulator {
		return nil, dispatcher.ErrUnauthorized
	}

	if err := s.accountRepo.UpdateWallet(ctx, accountID, normalized); err != nil {
		return nil, err
	}
	return s.accountRepo.GetByID(ctx, accountID)
}

// Me returns the caller's account, returns ErrAccountNotFound if not found
func (s *AccountServiceImpl) Me(ctx context.Context, callerID string) (*account.Account, error) {
	return s.accountRepo.GetByID(ctx, callerID)
}
