// Package readmodel builds role-shaped credit views by joining ledger tokens with
// local account data. Ledger data is never dropped when the local join fails.
package readmodel

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/hydrogen-credit-ledger/internal/config"
	"github.com/hydrogen-credit-ledger/internal/domain/account"
	"github.com/hydrogen-credit-ledger/internal/domain/journal"
	"github.com/hydrogen-credit-ledger/internal/domain/token"
)

// UnknownFactory annotates tokens whose factory has no resolvable producer
const UnknownFactory = "Unknown"

var ErrUnknownRole = errors.New("no view defined for role")

// Ledger is the read side of the ledger client
type Ledger interface {
	GetTokenDetails(ctx context.Context, tokenID uint64) (*token.Details, error)
	GetTokenHistory(ctx context.Context, tokenID uint64) ([]token.OwnershipEntry, error)
	GetTokensDetails(ctx context.Context, ids []uint64) ([]token.Details, error)
	GetTokensByOwner(ctx context.Context, owner string) ([]uint64, error)
	GetTokensByFactory(ctx context.Context, factoryID string) ([]uint64, error)
	GetAllTokenIDs(ctx context.Context) ([]uint64, error)
	GetPaginatedTokens(ctx context.Context, offset, limit uint64) ([]uint64, uint64, error)
	GetTotalTokenCount(ctx context.Context) (uint64, error)
	SearchTokens(ctx context.Context, filter token.SearchFilter, status token.Status) ([]token.Details, error)
}

// Accounts is the producer lookup used for enrichment
type Accounts interface {
	GetByFactoryIDs(ctx context.Context, factoryIDs []string) (map[string]*account.Account, error)
	ListProducers(ctx context.Context) ([]*account.Account, error)
}

// Journal supplies audit records for regulator views
type Journal interface {
	Recent(ctx context.Context, limit int) ([]*journal.Record, error)
	Count(ctx context.Context) (int64, error)
}

// Credit is a token annotated with its producer's factory name
type Credit struct {
	token.Details
	FactoryName string `json:"factory_name"`
}

// Merger joins ledger reads with account and journal data
type Merger struct {
	ledger   Ledger
	accounts Accounts
	journal  Journal
	cfg      config.ReadModelConfig
	logger   *slog.Logger
}

func NewMerger(logger *slog.Logger, ledger Ledger, accounts Accounts, journal Journal, cfg config.ReadModelConfig) *Merger {
	return &Merger{
		ledger:   ledger,
		accounts: accounts,
		journal:  journal,
		cfg:      cfg,
		logger:   logger,
	}
}

// ProducerView is the union of the producer's factory tokens and the tokens its wallet holds
func (m *Merger) ProducerView(ctx context.Context, producer *account.Account, status token.Status) ([]Credit, error) {
	ids, err := m.ledger.GetTokensByFactory(ctx, producer.FactoryID)
	if err != nil {
		return nil, err
	}
	if producer.HasWallet() {
		owned, err := m.ledger.GetTokensByOwner(ctx, producer.Wallet())
		if err != nil {
			return nil, err
		}
		ids = append(ids, owned...)
	}

	details, err := m.ledger.GetTokensDetails(ctx, uniqueSorted(ids))
	if err != nil {
		return nil, err
	}

	credits := make([]Credit, 0, len(details))
	for _, d := range details {
		if status.Matches(d.Token) {
			credits = append(credits, Credit{Details: d, FactoryName: producer.FactoryName})
		}
	}
	return credits, nil
}

// OwnedView lists the active tokens held by the account's wallet
func (m *Merger) OwnedView(ctx context.Context, acc *account.Account) ([]Credit, error) {
	if !acc.HasWallet() {
		return nil, account.ErrMissingWallet{AccountID: acc.ID}
	}
	ids, err := m.ledger.GetTokensByOwner(ctx, acc.Wallet())
	if err != nil {
		return nil, err
	}
	details, err := m.ledger.GetTokensDetails(ctx, uniqueSorted(ids))
	if err != nil {
		return nil, err
	}
	return m.enrich(ctx, details), nil
}

// BuyerView is the owned view; names come from the producers of each token's factory
func (m *Merger) BuyerView(ctx context.Context, buyer *account.Account) ([]Credit, error) {
	return m.OwnedView(ctx, buyer)
}

// TokenDetails returns one enriched token
func (m *Merger) TokenDetails(ctx context.Context, tokenID uint64) (*Credit, error) {
	d, err := m.ledger.GetTokenDetails(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	credits := m.enrich(ctx, []token.Details{*d})
	return &credits[0], nil
}

func (m *Merger) TokenHistory(ctx context.Context, tokenID uint64) ([]token.OwnershipEntry, error) {
	return m.ledger.GetTokenHistory(ctx, tokenID)
}

// enrich resolves all distinct factory ids with one lookup. Any failure marks
// the affected tokens Unknown and keeps them.
func (m *Merger) enrich(ctx context.Context, details []token.Details) []Credit {
	seen := make(map[string]bool)
	factoryIDs := make([]string, 0)
	for _, d := range details {
		if d.FactoryID != "" && !seen[d.FactoryID] {
			seen[d.FactoryID] = true
			factoryIDs = append(factoryIDs, d.FactoryID)
		}
	}

	var producers map[string]*account.Account
	if len(factoryIDs) > 0 {
		var err error
		producers, err = m.accounts.GetByFactoryIDs(ctx, factoryIDs)
		if err != nil {
			m.logger.Warn("Factory name lookup failed, annotating as unknown",
				"factories", len(factoryIDs),
				"error", err)
			producers = nil
		}
	}

	credits := make([]Credit, len(details))
	for i, d := range details {
		name := UnknownFactory
		if p, ok := producers[d.FactoryID]; ok && p.FactoryName != "" {
			name = p.FactoryName
		}
		credits[i] = Credit{Details: d, FactoryName: name}
	}
	return credits
}

func uniqueSorted(ids []uint64) []uint64 {
	seen := make(map[uint64]bool, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
