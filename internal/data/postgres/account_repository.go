// Package postgres provides PostgreSQL implementations of the domain repositories:
// the account store and the reconciler cursor store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hydrogen-credit-ledger/internal/domain/account"
	"github.com/hydrogen-credit-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

const (
	accountColumns = `id, username, email, role, wallet_address, factory_name, factory_id, created_at, updated_at`

	constraintUsername  = "accounts_username_key"
	constraintEmail     = "accounts_email_key"
	constraintWallet    = "accounts_wallet_address_key"
	constraintFactoryID = "accounts_factory_id_key"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier      persistence.Querier
	logger       *slog.Logger
	maxAttempts  int
	newFactoryID func() (string, error)
}

// NewAccountRepository creates a new PostgreSQL account repository.
// maxAttempts bounds the factory id collision loop.
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB, maxAttempts int) account.Repository {
	return &AccountRepository{
		querier:      db.Pool(),
		logger:       logger,
		maxAttempts:  maxAttempts,
		newFactoryID: account.GenerateFactoryID,
	}
}

// Create stores a new account. Producers without a factory id get one here:
// generate, check it is free, insert, and start over if a concurrent
// registration claimed the same id between check and insert.
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	if !acc.NeedsFactoryID() {
		return r.insert(ctx, acc)
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		candidate, err := r.newFactoryID()
		if err != nil {
			return err
		}

		exists, err := r.FactoryIDExists(ctx, candidate)
		if err != nil {
			return err
		}
		if exists {
			r.logger.Debug("Factory id collision on check", "attempt", attempt)
			continue
		}

		acc.FactoryID = candidate
		err = r.insert(ctx, acc)
		if err == nil {
			return nil
		}
		acc.FactoryID = ""
		if persistence.IsUniqueViolation(err, constraintFactoryID) {
			r.logger.Warn("Factory id claimed concurrently, regenerating", "attempt", attempt)
			continue
		}
		return err
	}

	r.logger.Error("Exhausted factory id attempts", "account_id", acc.ID, "attempts", r.maxAttempts)
	return account.ErrFactoryIDExhausted{Attempts: r.maxAttempts}
}

func (r *AccountRepository) insert(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (id, username, email, role, wallet_address, factory_name, factory_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		acc.ID,
		acc.Username,
		acc.Email,
		string(acc.Role),
		acc.WalletAddress,
		nullable(acc.FactoryName),
		nullable(acc.FactoryID),
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err == nil {
		return nil
	}

	switch {
	case persistence.IsUniqueViolation(err, constraintUsername):
		return account.ErrDuplicateAccount{Field: "username"}
	case persistence.IsUniqueViolation(err, constraintEmail):
		return account.ErrDuplicateAccount{Field: "email"}
	case persistence.IsUniqueViolation(err, constraintWallet):
		return account.ErrDuplicateAccount{Field: "wallet address"}
	case persistence.IsUniqueViolation(err, constraintFactoryID):
		return fmt.Errorf("failed to create account: %w", err)
	}
	r.logger.Error("Failed to create account", "error", err)
	return fmt.Errorf("failed to create account: %w", err)
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{Identifier: id}
		}
		r.logger.Error("Failed to get account", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// FindByIdentifier evaluates username, factory id and account id in one query.
// The id predicate is only bound when the identifier has the id format.
func (r *AccountRepository) FindByIdentifier(ctx context.Context, identifier string) (*account.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, account.ErrAccountNotFound{Identifier: identifier}
	}

	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE username = $1 OR factory_id = $2 OR id = $3
		ORDER BY CASE WHEN username = $1 THEN 0 WHEN factory_id = $2 THEN 1 ELSE 2 END
		LIMIT 1
	`

	var idArg *string
	if account.IsValidID(identifier) {
		idArg = &identifier
	}

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, identifier, account.NormalizeFactoryID(identifier), idArg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{Identifier: identifier}
		}
		r.logger.Error("Failed to find account by identifier", "identifier", identifier, "error", err)
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return acc, nil
}

// GetByFactoryIDs loads all producers owning one of the given factory ids in one query
func (r *AccountRepository) GetByFactoryIDs(ctx context.Context, factoryIDs []string) (map[string]*account.Account, error) {
	result := make(map[string]*account.Account, len(factoryIDs))
	if len(factoryIDs) == 0 {
		return result, nil
	}

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE factory_id = ANY($1)`

	accounts, err := r.queryAccounts(ctx, query, factoryIDs)
	if err != nil {
		r.logger.Error("Failed to load accounts by factory ids", "count", len(factoryIDs), "error", err)
		return nil, fmt.Errorf("failed to load accounts by factory ids: %w", err)
	}
	for _, acc := range accounts {
		result[acc.FactoryID] = acc
	}
	return result, nil
}

// ListProducers returns every producer account ordered by factory name
func (r *AccountRepository) ListProducers(ctx context.Context) ([]*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE role = $1 ORDER BY factory_name, id`

	accounts, err := r.queryAccounts(ctx, query, string(account.RoleProducer))
	if err != nil {
		r.logger.Error("Failed to list producers", "error", err)
		return nil, fmt.Errorf("failed to list producers: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) FactoryIDExists(ctx context.Context, factoryID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE factory_id = $1)`

	var exists bool
	if err := r.querier.QueryRow(ctx, query, factoryID).Scan(&exists); err != nil {
		r.logger.Error("Failed to check factory id", "error", err)
		return false, fmt.Errorf("failed to check factory id: %w", err)
	}
	return exists, nil
}

// UpdateWallet assigns a wallet to an existing account
func (r *AccountRepository) UpdateWallet(ctx context.Context, id string, wallet string) error {
	normalized, err := account.NormalizeWallet(wallet)
	if err != nil {
		return err
	}

	query := `UPDATE accounts SET wallet_address = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.querier.Exec(ctx, query, normalized, id)
	if err != nil {
		if persistence.IsUniqueViolation(err, constraintWallet) {
			return account.ErrDuplicateAccount{Field: "wallet address"}
		}
		r.logger.Error("Failed to update wallet", "id", id, "error", err)
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	if result.RowsAffected() == 0 {
		return account.ErrAccountNotFound{Identifier: id}
	}
	return nil
}

func (r *AccountRepository) queryAccounts(ctx context.Context, query string, args ...interface{}) ([]*account.Account, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		acc         account.Account
		role        string
		factoryName *string
		factoryID   *string
	)
	if err := row.Scan(
		&acc.ID,
		&acc.Username,
		&acc.Email,
		&role,
		&acc.WalletAddress,
		&factoryName,
		&factoryID,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	acc.Role = account.Role(role)
	if factoryName != nil {
		acc.FactoryName = *factoryName
	}
	if factoryID != nil {
		acc.FactoryID = *factoryID
	}
	return &acc, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
