// Package accounttest provides an in-memory account.Repository
package accounttest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/hydrogen-credit-ledger/internal/domain/account"
)

// Repository mirrors the uniqueness rules of the SQL store
type Repository struct {
	mu          sync.Mutex
	accounts    map[string]*account.Account
	maxAttempts int
	generate    func() (string, error)

	// FactoryLookupErr, when set, fails GetByFactoryIDs
	FactoryLookupErr error
	// Lookups counts GetByFactoryIDs calls
	Lookups int
}

func NewRepository() *Repository {
	return &Repository{
		accounts:    make(map[string]*account.Account),
		maxAttempts: 10,
		generate:    account.GenerateFactoryID,
	}
}

// WithGenerator replaces the factory id source
func (r *Repository) WithGenerator(maxAttempts int, generate func() (string, error)) *Repository {
	r.maxAttempts = maxAttempts
	r.generate = generate
	return r
}

func (r *Repository) Create(_ context.Context, acc *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		switch {
		case existing.Username == acc.Username:
			return account.ErrDuplicateAccount{Field: "username"}
		case existing.Email == acc.Email:
			return account.ErrDuplicateAccount{Field: "email"}
		case acc.HasWallet() && existing.Wallet() == acc.Wallet():
			return account.ErrDuplicateAccount{Field: "wallet address"}
		}
	}

	if acc.NeedsFactoryID() {
		assigned := false
		for attempt := 0; attempt < r.maxAttempts; attempt++ {
			candidate, err := r.generate()
			if err != nil {
				return err
			}
			if !r.factoryIDTaken(candidate) {
				acc.FactoryID = candidate
				assigned = true
				break
			}
		}
		if !assigned {
			return account.ErrFactoryIDExhausted{Attempts: r.maxAttempts}
		}
	}

	stored := *acc
	r.accounts[acc.ID] = &stored
	return nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound{Identifier: id}
	}
	c := *acc
	return &c, nil
}

func (r *Repository) FindByIdentifier(_ context.Context, identifier string) (*account.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, account.ErrAccountNotFound{Identifier: identifier}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	factoryID := account.NormalizeFactoryID(identifier)
	validID := account.IsValidID(identifier)

	var byFactory, byID *account.Account
	for _, acc := range r.accounts {
		switch {
		case acc.Username == identifier:
			c := *acc
			return &c, nil
		case acc.FactoryID != "" && acc.FactoryID == factoryID:
			byFactory = acc
		case validID && acc.ID == identifier:
			byID = acc
		}
	}
	for _, acc := range []*account.Account{byFactory, byID} {
		if acc != nil {
			c := *acc
			return &c, nil
		}
	}
	return nil, account.ErrAccountNotFound{Identifier: identifier}
}

func (r *Repository) GetByFactoryIDs(_ context.Context, factoryIDs []string) (map[string]*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lookups++
	if r.FactoryLookupErr != nil {
		return nil, r.FactoryLookupErr
	}

	wanted := make(map[string]bool, len(factoryIDs))
	for _, id := range factoryIDs {
		wanted[id] = true
	}
	result := make(map[string]*account.Account)
	for _, acc := range r.accounts {
		if acc.FactoryID != "" && wanted[acc.FactoryID] {
			c := *acc
			result[acc.FactoryID] = &c
		}
	}
	return result, nil
}

func (r *Repository) ListProducers(_ context.Context) ([]*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*account.Account
	for _, acc := range r.accounts {
		if acc.Role == account.RoleProducer {
			c := *acc
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FactoryName < out[j].FactoryName })
	return out, nil
}

func (r *Repository) FactoryIDExists(_ context.Context, factoryID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.factoryIDTaken(factoryID), nil
}

func (r *Repository) UpdateWallet(_ context.Context, id string, wallet string) error {
	normalized, err := account.NormalizeWallet(wallet)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return account.ErrAccountNotFound{Identifier: id}
	}
	for _, other := range r.accounts {
		if other.ID != id && other.Wallet() == normalized {
			return account.ErrDuplicateAccount{Field: "wallet address"}
		}
	}
	acc.WalletAddress = &normalized
	return nil
}

func (r *Repository) factoryIDTaken(id string) bool {
	for _, acc := range r.accounts {
		if acc.FactoryID == id {
			return true
		}
	}
	return false
}

var _ account.Repository = (*Repository)(nil)

// ErrUnavailable is a convenience error for failure injection
var ErrUnavailable = errors.New("account store unavailable")
