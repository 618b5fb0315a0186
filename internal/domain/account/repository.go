package account

import (
	"context"
)

// Repository defines account persistence operations
type Repository interface {
	// Create inserts the account, generating a unique factory id for producers
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)

	// FindByIdentifier matches username, factory id or account id in a single lookup
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)

	// GetByFactoryIDs bulk-loads producers keyed by factory id; missing ids are absent from the map
	GetByFactoryIDs(ctx context.Context, factoryIDs []string) (map[string]*Account, error)
	ListProducers(ctx context.Context) ([]*Account, error)
	FactoryIDExists(ctx context.Context, factoryID string) (bool, error)
	UpdateWallet(ctx context.Context, id string, wallet string) error
}

// ErrAccountNotFound indicates no account matched the lookup
type ErrAccountNotFound struct {
	Identifier string
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.Identifier
}

// Is matches any ErrAccountNotFound when the target identifier is empty
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	return t.Identifier == "" || t.Identifier == e.Identifier
}

// ErrMissingWallet indicates a resolved account that cannot receive tokens yet
type ErrMissingWallet struct {
	AccountID string
}

func (e ErrMissingWallet) Error() string {
	return "account has no wallet address assigned: " + e.AccountID
}

func (e ErrMissingWallet) Is(target error) bool {
	t, ok := target.(ErrMissingWallet)
	if !ok {
		return false
	}
	return t.AccountID == "" || t.AccountID == e.AccountID
}

// ErrDuplicateAccount indicates a username, email or wallet uniqueness violation
type ErrDuplicateAccount struct {
	Field string
}

func (e ErrDuplicateAccount) Error() string {
	return "account with this " + e.Field + " already exists"
}

// ErrFactoryIDExhausted is returned when no free factory id was found within the attempt budget
type ErrFactoryIDExhausted struct {
	Attempts int
}

func (e ErrFactoryIDExhausted) Error() string {
	return "could not allocate a unique factory id"
}
