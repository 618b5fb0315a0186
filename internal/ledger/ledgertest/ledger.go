// Package ledgertest provides an in-memory ledger with the same method set as ledger.Client
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hydrogen-credit-ledger/internal/domain/shared"
	"github.com/hydrogen-credit-ledger/internal/domain/token"
	"github.com/hydrogen-credit-ledger/internal/ledger"
)

const gasPerTx = 50_000

var ErrReverted = errors.New("execution reverted")

// Ledger keeps tokens in memory and enforces ownership and retirement like the contract
type Ledger struct {
	mu        sync.Mutex
	tokens    map[uint64]*token.Details
	order     []uint64
	events    []ledger.Event
	block     uint64
	txCount   uint64
	signer    string
	now       func() time.Time
	mintCalls int

	mintFailures map[int]error // keyed by 1-based mint call number
	readErr      error
}

// New returns an empty ledger whose retirements are attributed to signer
func New(signer string) *Ledger {
	return &Ledger{
		tokens:       make(map[uint64]*token.Details),
		signer:       signer,
		now:          func() time.Time { return time.Now().UTC().Truncate(time.Second) },
		mintFailures: make(map[int]error),
	}
}

// FailMint makes the n-th Mint call (1-based) fail with err
func (l *Ledger) FailMint(n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mintFailures[n] = err
}

// FailReads makes every read fail with err until called with nil
func (l *Ledger) FailReads(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readErr = err
}

// SetClock overrides the timestamp source
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *Ledger) MintCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mintCalls
}

// Token returns a copy of the stored token
func (l *Ledger) Token(id uint64) (token.Details, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.tokens[id]
	if !ok {
		return token.Details{}, false
	}
	return clone(d), true
}

func (l *Ledger) Mint(_ context.Context, to string, factoryID string) (*ledger.MintResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.mintCalls++
	if err, ok := l.mintFailures[l.mintCalls]; ok {
		return nil, err
	}
	if strings.TrimSpace(factoryID) == "" {
		return nil, &ledger.Error{Kind: ledger.KindLedger, Op: "mint", Err: errors.New("factory id cannot be empty")}
	}

	id := uint64(len(l.order) + 1)
	now := l.now()
	l.tokens[id] = &token.Details{
		Token: token.Token{
			ID:             id,
			Creator:        to,
			CreatedAt:      now,
			FactoryID:      factoryID,
			Owner:          to,
			LastTransferAt: now,
		},
		History: []token.OwnershipEntry{{Owner: to, Timestamp: now}},
	}
	l.order = append(l.order, id)

	res := l.confirm(shared.OperationMint, id, nil, &to, &factoryID)
	return &ledger.MintResult{TxResult: res, TokenID: id, To: to}, nil
}

func (l *Ledger) Transfer(_ context.Context, from, to string, tokenID uint64) (*ledger.TxResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.tokens[tokenID]
	if !ok {
		return nil, &ledger.Error{Kind: ledger.KindNotFound, Op: "transfer", Err: token.ErrTokenNotFound{TokenID: tokenID}}
	}
	if d.Retired {
		return nil, revert("transfer", "token is retired")
	}
	if !strings.EqualFold(d.Owner, from) {
		return nil, revert("transfer", "caller is not the token owner")
	}

	now := l.now()
	d.Owner = to
	d.LastTransferAt = now
	d.History = append(d.History, token.OwnershipEntry{Owner: to, Timestamp: now})

	res := l.confirm(shared.OperationTransfer, tokenID, &from, &to, nil)
	return &res, nil
}

func (l *Ledger) Retire(_ context.Context, tokenID uint64) (*ledger.TxResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.tokens[tokenID]
	if !ok {
		return nil, &ledger.Error{Kind: ledger.KindNotFound, Op: "retire", Err: token.ErrTokenNotFound{TokenID: tokenID}}
	}
	if d.Retired {
		return nil, revert("retire", "token already retired")
	}

	now := l.now()
	by := l.signer
	d.Retired = true
	d.RetiredAt = &now
	d.RetiredBy = &by

	res := l.confirm(shared.OperationRetire, tokenID, nil, nil, nil)
	return &res, nil
}

func (l *Ledger) GetTokenDetails(_ context.Context, tokenID uint64) (*token.Details, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	d, ok := l.tokens[tokenID]
	if !ok {
		return nil, &ledger.Error{Kind: ledger.KindNotFound, Op: "getTokenDetails", Err: token.ErrTokenNotFound{TokenID: tokenID}}
	}
	c := clone(d)
	return &c, nil
}

func (l *Ledger) GetTokenHistory(ctx context.Context, tokenID uint64) ([]token.OwnershipEntry, error) {
	d, err := l.GetTokenDetails(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	return d.History, nil
}

func (l *Ledger) GetTokensDetails(ctx context.Context, ids []uint64) ([]token.Details, error) {
	out := make([]token.Details, 0, len(ids))
	for _, id := range ids {
		d, err := l.GetTokenDetails(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

func (l *Ledger) GetTokensByOwner(_ context.Context, owner string) ([]uint64, error) {
	return l.ids(func(d *token.Details) bool { return !d.Retired && strings.EqualFold(d.Owner, owner) })
}

func (l *Ledger) GetTokensByFactory(_ context.Context, factoryID string) ([]uint64, error) {
	return l.ids(func(d *token.Details) bool { return d.FactoryID == factoryID })
}

func (l *Ledger) GetAllTokenIDs(_ context.Context) ([]uint64, error) {
	return l.ids(func(*token.Details) bool { return true })
}

func (l *Ledger) GetRetiredTokens(_ context.Context) ([]uint64, error) {
	return l.ids(func(d *token.Details) bool { return d.Retired })
}

func (l *Ledger) GetPaginatedTokens(ctx context.Context, offset, limit uint64) ([]uint64, uint64, error) {
	all, err := l.GetAllTokenIDs(ctx)
	if err != nil {
		return nil, 0, err
	}
	total := uint64(len(all))
	if offset >= total {
		return []uint64{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (l *Ledger) GetTotalTokenCount(_ context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return 0, l.readErr
	}
	return uint64(len(l.order)), nil
}

func (l *Ledger) SearchTokens(ctx context.Context, filter token.SearchFilter, status token.Status) ([]token.Details, error) {
	var (
		ids []uint64
		err error
	)
	switch f := filter.(type) {
	case token.ByFactory:
		ids, err = l.GetTokensByFactory(ctx, f.FactoryID)
	case token.ByOwner:
		ids, err = l.GetTokensByOwner(ctx, f.Owner)
	default:
		ids, err = l.GetAllTokenIDs(ctx)
	}
	if err != nil {
		return nil, err
	}
	details, err := l.GetTokensDetails(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := details[:0]
	for _, d := range details {
		if status.Matches(d.Token) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (l *Ledger) LatestBlock(_ context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return 0, l.readErr
	}
	return l.block, nil
}

func (l *Ledger) GetLedgerEvents(_ context.Context, from, to uint64) ([]ledger.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	out := make([]ledger.Event, 0)
	for _, e := range l.events {
		if e.BlockNumber >= from && e.BlockNumber <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

// confirm mines one transaction per block; callers hold the lock
func (l *Ledger) confirm(op shared.Operation, tokenID uint64, from, to, factoryID *string) ledger.TxResult {
	l.txCount++
	l.block++
	res := ledger.TxResult{
		TransactionHash: fmt.Sprintf("0x%064x", l.txCount),
		GasUsed:         gasPerTx,
		BlockNumber:     l.block,
	}
	l.events = append(l.events, ledger.Event{
		Operation:       op,
		TransactionHash: res.TransactionHash,
		BlockNumber:     res.BlockNumber,
		TokenID:         tokenID,
		From:            from,
		To:              to,
		FactoryID:       factoryID,
		GasUsed:         gasPerTx,
		ObservedAt:      l.now(),
	})
	return res
}

func (l *Ledger) ids(keep func(*token.Details) bool) ([]uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	out := make([]uint64, 0)
	for _, id := range l.order {
		if keep(l.tokens[id]) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func revert(op, reason string) error {
	return &ledger.Error{Kind: ledger.KindLedger, Op: op, Err: fmt.Errorf("%w: %s", ErrReverted, reason)}
}

func clone(d *token.Details) token.Details {
	c := *d
	c.History = append([]token.OwnershipEntry(nil), d.History...)
	return c
}
