package readmodel

import (
	"context"
	"sort"
)

// FactoryStats breaks the totals down per factory
type FactoryStats struct {
	FactoryID   string `json:"factory_id"`
	FactoryName string `json:"factory_name"`
	Minted      int64  `json:"minted"`
	Retired     int64  `json:"retired"`
	Active      int64  `json:"active"`
}

type Stats struct {
	TotalMinted       int64          `json:"total_minted"`
	TotalRetired      int64          `json:"total_retired"`
	TotalActive       int64          `json:"total_active"`
	TotalTransferred  int64          `json:"total_transferred"`
	TotalTransactions int64          `json:"total_transactions"`
	ByFactory         []FactoryStats `json:"by_factory"`
}

// Stats counts retired and active tokens from the full detail set rather than
// subtracting, so the two always add up to what the ledger reports per token.
func (m *Merger) Stats(ctx context.Context) (*Stats, error) {
	total, err := m.ledger.GetTotalTokenCount(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := m.ledger.GetAllTokenIDs(ctx)
	if err != nil {
		return nil, err
	}
	details, err := m.ledger.GetTokensDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalMinted: int64(total)}
	perFactory := make(map[string]*FactoryStats)
	for _, c := range m.enrich(ctx, details) {
		fs, ok := perFactory[c.FactoryID]
		if !ok {
			fs = &FactoryStats{FactoryID: c.FactoryID, FactoryName: c.FactoryName}
			perFactory[c.FactoryID] = fs
		}
		fs.Minted++
		if c.Retired {
			stats.TotalRetired++
			fs.Retired++
		} else {
			stats.TotalActive++
			fs.Active++
		}
		if c.Transferred() {
			stats.TotalTransferred++
		}
	}

	stats.ByFactory = make([]FactoryStats, 0, len(perFactory))
	for _, fs := range perFactory {
		stats.ByFactory = append(stats.ByFactory, *fs)
	}
	sort.Slice(stats.ByFactory, func(i, j int) bool { return stats.ByFactory[i].FactoryID < stats.ByFactory[j].FactoryID })

	count, err := m.journal.Count(ctx)
	if err != nil {
		m.logger.Warn("Journal count unavailable", "error", err)
	}
	stats.TotalTransactions = count
	return stats, nil
}

// Factory is a producer with the number of credits minted under its factory id
type Factory struct {
	FactoryID     string `json:"factory_id"`
	FactoryName   string `json:"factory_name"`
	AccountID     string `json:"account_id"`
	Username      string `json:"username"`
	WalletAddress string `json:"wallet_address,omitempty"`
	TokensMinted  int    `json:"tokens_minted"`
}

func (m *Merger) Factories(ctx context.Context) ([]Factory, error) {
	producers, err := m.accounts.ListProducers(ctx)
	if err != nil {
		return nil, err
	}

	factories := make([]Factory, 0, len(producers))
	for _, p := range producers {
		ids, err := m.ledger.GetTokensByFactory(ctx, p.FactoryID)
		if err != nil {
			return nil, err
		}
		factories = append(factories, Factory{
			FactoryID:     p.FactoryID,
			FactoryName:   p.FactoryName,
			AccountID:     p.ID,
			Username:      p.Username,
			WalletAddress: p.Wallet(),
			TokensMinted:  len(ids),
		})
	}
	return factories, nil
}
