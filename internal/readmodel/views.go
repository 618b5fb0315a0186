package readmodel

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hydrogen-credit-ledger/internal/domain/account"
	"github.com/hydrogen-credit-ledger/internal/domain/journal"
	"github.com/hydrogen-credit-ledger/internal/domain/token"
)

// ListQuery carries the credit list parameters. Any of Search, FactoryID, Owner
// or Status switches the regulator view from plain pagination to search.
type ListQuery struct {
	Page      int64
	Limit     int64
	Search    string
	FactoryID string
	Owner     string
	Status    string
}

func (q ListQuery) filtered() bool {
	return strings.TrimSpace(q.Search) != "" ||
		strings.TrimSpace(q.FactoryID) != "" ||
		strings.TrimSpace(q.Owner) != "" ||
		strings.TrimSpace(q.Status) != ""
}

// Dashboard is the role-shaped credit list
type Dashboard struct {
	Role               account.Role      `json:"role"`
	Credits            []Credit          `json:"credits"`
	Total              int64             `json:"total"`
	Page               int64             `json:"page,omitempty"`
	Limit              int64             `json:"limit,omitempty"`
	RecentTransactions []*journal.Record `json:"recent_transactions,omitempty"`
}

// View dispatches to the view of the caller's role
func (m *Merger) View(ctx context.Context, caller *account.Account, q ListQuery) (*Dashboard, error) {
	status, err := token.ParseStatus(q.Status)
	if err != nil {
		return nil, err
	}

	switch caller.Role {
	case account.RoleProducer:
		credits, err := m.ProducerView(ctx, caller, status)
		if err != nil {
			return nil, err
		}
		return &Dashboard{Role: caller.Role, Credits: credits, Total: int64(len(credits))}, nil
	case account.RoleBuyer:
		credits, err := m.BuyerView(ctx, caller)
		if err != nil {
			return nil, err
		}
		return &Dashboard{Role: caller.Role, Credits: credits, Total: int64(len(credits))}, nil
	case account.RoleRegulator, account.RoleCertifier:
		d, err := m.RegulatorView(ctx, q)
		if err != nil {
			return nil, err
		}
		d.Role = caller.Role
		return d, nil
	}
	return nil, ErrUnknownRole
}

// RegulatorView is the full paginated list, or a filtered search when any filter is set.
// Both carry the most recent journal records.
func (m *Merger) RegulatorView(ctx context.Context, q ListQuery) (*Dashboard, error) {
	page, limit := m.pageParams(q.Page, q.Limit)
	offset := pageOffset(page, limit)

	var (
		credits []Credit
		total   int64
	)
	if q.filtered() {
		status, err := token.ParseStatus(q.Status)
		if err != nil {
			return nil, err
		}
		filter, err := searchFilter(q.FactoryID, q.Owner)
		if err != nil {
			return nil, err
		}
		details, err := m.ledger.SearchTokens(ctx, filter, status)
		if err != nil {
			return nil, err
		}
		matched := filterText(m.enrich(ctx, details), q.Search)
		total = int64(len(matched))
		credits = paginate(matched, offset, limit)
	} else {
		ids, count, err := m.ledger.GetPaginatedTokens(ctx, uint64(offset), uint64(limit))
		if err != nil {
			return nil, err
		}
		details, err := m.ledger.GetTokensDetails(ctx, ids)
		if err != nil {
			return nil, err
		}
		credits = m.enrich(ctx, details)
		total = int64(count)
	}

	return &Dashboard{
		Credits:            credits,
		Total:              total,
		Page:               page,
		Limit:              limit,
		RecentTransactions: m.recent(ctx),
	}, nil
}

// SearchQuery is the advanced search input; From and To bound the creation time inclusively
type SearchQuery struct {
	FactoryID string
	Owner     string
	Status    string
	Text      string
	From      *time.Time
	To        *time.Time
	Offset    int64
	Limit     int64
}

// SearchResult reports the filtered count before pagination
type SearchResult struct {
	Credits    []Credit `json:"credits"`
	TotalCount int64    `json:"total_count"`
	Offset     int64    `json:"offset"`
	Limit      int64    `json:"limit"`
}

// AdvancedSearch filters ledger side, then by status, text and date; pagination comes last
func (m *Merger) AdvancedSearch(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	status, err := token.ParseStatus(q.Status)
	if err != nil {
		return nil, err
	}
	filter, err := searchFilter(q.FactoryID, q.Owner)
	if err != nil {
		return nil, err
	}
	details, err := m.ledger.SearchTokens(ctx, filter, status)
	if err != nil {
		return nil, err
	}

	matched := filterText(m.enrich(ctx, details), q.Text)
	if q.From != nil || q.To != nil {
		inRange := matched[:0]
		for _, c := range matched {
			if q.From != nil && c.CreatedAt.Before(*q.From) {
				continue
			}
			if q.To != nil && c.CreatedAt.After(*q.To) {
				continue
			}
			inRange = append(inRange, c)
		}
		matched = inRange
	}

	_, limit := m.pageParams(1, q.Limit)
	offset := max(q.Offset, 0)
	return &SearchResult{
		Credits:    paginate(matched, offset, limit),
		TotalCount: int64(len(matched)),
		Offset:     offset,
		Limit:      limit,
	}, nil
}

func (m *Merger) recent(ctx context.Context) []*journal.Record {
	if m.cfg.RecentTransactions <= 0 {
		return nil
	}
	records, err := m.journal.Recent(ctx, m.cfg.RecentTransactions)
	if err != nil {
		m.logger.Warn("Recent journal records unavailable", "error", err)
		return []*journal.Record{}
	}
	return records
}

func (m *Merger) pageParams(page, limit int64) (int64, int64) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = m.cfg.DefaultPageSize
	}
	if m.cfg.MaxPageSize > 0 && limit > m.cfg.MaxPageSize {
		limit = m.cfg.MaxPageSize
	}
	return page, limit
}

// pageOffset saturates at math.MaxInt64, which lies past the end of any result
func pageOffset(page, limit int64) int64 {
	if page < 1 || limit < 1 {
		return 0
	}
	if page-1 > math.MaxInt64/limit {
		return math.MaxInt64
	}
	return (page - 1) * limit
}

// searchFilter rejects an owner that is not an address before it reaches the ledger
func searchFilter(factoryID, owner string) (token.SearchFilter, error) {
	filter := token.NewSearchFilter(factoryID, owner)
	if byOwner, ok := filter.(token.ByOwner); ok {
		wallet, err := account.NormalizeWallet(byOwner.Owner)
		if err != nil {
			return nil, fmt.Errorf("owner filter %q: %w", byOwner.Owner, err)
		}
		return token.ByOwner{Owner: wallet}, nil
	}
	return filter, nil
}

// filterText matches id, factory id, factory name, owner or creator, case-insensitively
func filterText(credits []Credit, text string) []Credit {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return credits
	}
	out := make([]Credit, 0, len(credits))
	for _, c := range credits {
		fields := []string{
			strconv.FormatUint(c.ID, 10),
			c.FactoryID,
			c.FactoryName,
			c.Owner,
			c.Creator,
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), text) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func paginate(credits []Credit, offset, limit int64) []Credit {
	n := int64(len(credits))
	if offset < 0 || offset >= n || limit < 1 {
		return []Credit{}
	}
	return credits[offset : offset+min(limit, n-offset)]
}
