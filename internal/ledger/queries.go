package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hydrogen-credit-ledger/internal/domain/token"
)

type tokenDetailsOutput struct {
	TokenId          *big.Int
	Creator          common.Address
	CreationTime     *big.Int
	FactoryId        string
	CurrentOwner     common.Address
	LastTransferTime *big.Int
	IsRetired        bool
	RetirementTime   *big.Int
	RetiredBy        common.Address
}

type tokenHistoryOutput struct {
	Owners     []common.Address
	Timestamps []*big.Int
}

type paginatedOutput struct {
	TokenIds []*big.Int
	Total    *big.Int
}

// GetTokenDetails returns the token and its ownership history
func (c *Client) GetTokenDetails(ctx context.Context, tokenID uint64) (*token.Details, error) {
	const op = "getTokenDetails"
	if err := c.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	id := new(big.Int).SetUint64(tokenID)

	var out tokenDetailsOutput
	if err := c.callInto(ctx, &out, "getTokenDetails", id); err != nil {
		if isRevert(err) {
			return nil, notFound(op, tokenID)
		}
		return nil, newError(op, err)
	}
	if out.Creator == (common.Address{}) {
		return nil, notFound(op, tokenID)
	}

	var hist tokenHistoryOutput
	if err := c.callInto(ctx, &hist, "getTokenHistory", id); err != nil {
		return nil, newError("getTokenHistory", err)
	}

	details := &token.Details{
		Token:   tokenFromOutput(tokenID, out),
		History: make([]token.OwnershipEntry, 0, len(hist.Owners)),
	}
	for i, owner := range hist.Owners {
		entry := token.OwnershipEntry{Owner: owner.Hex()}
		if i < len(hist.Timestamps) {
			entry.Timestamp = fromSeconds(hist.Timestamps[i])
		}
		details.History = append(details.History, entry)
	}
	return details, nil
}

// GetTokenHistory returns only the ownership history of a token
func (c *Client) GetTokenHistory(ctx context.Context, tokenID uint64) ([]token.OwnershipEntry, error) {
	d, err := c.GetTokenDetails(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	return d.History, nil
}

// GetTokensDetails fetches details for many tokens concurrently; order follows ids
func (c *Client) GetTokensDetails(ctx context.Context, ids []uint64) ([]token.Details, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []token.Details{}, nil
	}

	results := make([]token.Details, len(ids))
	errs := make([]error, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			d, err := c.GetTokenDetails(ctx, id)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = *d
		})
		if err != nil {
			wg.Done()
			errs[i] = newError("getTokenDetails", fmt.Errorf("failed to schedule fetch: %w", err))
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (c *Client) GetTokensByOwner(ctx context.Context, owner string) ([]uint64, error) {
	const op = "getActiveTokensByOwner"
	if !common.IsHexAddress(owner) {
		return nil, &Error{Kind: KindLedger, Op: op, Err: fmt.Errorf("invalid owner address %q", owner)}
	}
	return c.idList(ctx, op, common.HexToAddress(owner))
}

func (c *Client) GetTokensByFactory(ctx context.Context, factoryID string) ([]uint64, error) {
	return c.idList(ctx, "getTokensByFactory", factoryID)
}

func (c *Client) GetAllTokenIDs(ctx context.Context) ([]uint64, error) {
	return c.idList(ctx, "getAllTokenIds")
}

func (c *Client) GetRetiredTokens(ctx context.Context) ([]uint64, error) {
	return c.idList(ctx, "getRetiredTokens")
}

// GetPaginatedTokens returns one page of ids and the total token count
func (c *Client) GetPaginatedTokens(ctx context.Context, offset, limit uint64) ([]uint64, uint64, error) {
	const op = "getPaginatedTokens"
	if err := c.ensureReady(); err != nil {
		return nil, 0, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var out paginatedOutput
	if err := c.callInto(ctx, &out, op, new(big.Int).SetUint64(offset), new(big.Int).SetUint64(limit)); err != nil {
		return nil, 0, newError(op, err)
	}
	ids, err := toIDs(out.TokenIds)
	if err != nil {
		return nil, 0, newError(op, err)
	}
	return ids, out.Total.Uint64(), nil
}

func (c *Client) GetTotalTokenCount(ctx context.Context) (uint64, error) {
	const op = "getTotalTokens"
	if err := c.ensureReady(); err != nil {
		return 0, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	values, err := c.call(ctx, op)
	if err != nil {
		return 0, newError(op, err)
	}
	total, ok := values[0].(*big.Int)
	if !ok {
		return 0, newError(op, fmt.Errorf("unexpected output type %T", values[0]))
	}
	return total.Uint64(), nil
}

// SearchTokens reads through the index chosen by filter, then applies status to the details
func (c *Client) SearchTokens(ctx context.Context, filter token.SearchFilter, status token.Status) ([]token.Details, error) {
	var (
		ids []uint64
		err error
	)
	switch f := filter.(type) {
	case token.ByFactory:
		ids, err = c.GetTokensByFactory(ctx, f.FactoryID)
	case token.ByOwner:
		ids, err = c.GetTokensByOwner(ctx, f.Owner)
	case token.All, nil:
		ids, err = c.GetAllTokenIDs(ctx)
	default:
		return nil, &Error{Kind: KindLedger, Op: "searchTokens", Err: fmt.Errorf("unsupported filter %T", filter)}
	}
	if err != nil {
		return nil, err
	}

	details, err := c.GetTokensDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	filtered := details[:0]
	for _, d := range details {
		if status.Matches(d.Token) {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

func (c *Client) idList(ctx context.Context, op string, args ...interface{}) ([]uint64, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	values, err := c.call(ctx, op, args...)
	if err != nil {
		return nil, newError(op, err)
	}
	raw, ok := values[0].([]*big.Int)
	if !ok {
		return nil, newError(op, fmt.Errorf("unexpected output type %T", values[0]))
	}
	ids, err := toIDs(raw)
	if err != nil {
		return nil, newError(op, err)
	}
	return ids, nil
}

func toIDs(raw []*big.Int) ([]uint64, error) {
	ids := make([]uint64, 0, len(raw))
	for _, n := range raw {
		if !n.IsUint64() {
			return nil, fmt.Errorf("token id %s out of range", n.String())
		}
		ids = append(ids, n.Uint64())
	}
	return ids, nil
}

func tokenFromOutput(id uint64, out tokenDetailsOutput) token.Token {
	t := token.Token{
		ID:             id,
		Creator:        out.Creator.Hex(),
		CreatedAt:      fromSeconds(out.CreationTime),
		FactoryID:      out.FactoryId,
		Owner:          out.CurrentOwner.Hex(),
		LastTransferAt: fromSeconds(out.LastTransferTime),
		Retired:        out.IsRetired,
	}
	if out.IsRetired {
		retiredAt := fromSeconds(out.RetirementTime)
		retiredBy := out.RetiredBy.Hex()
		t.RetiredAt = &retiredAt
		t.RetiredBy = &retiredBy
	}
	return t
}

// fromSeconds converts a ledger timestamp to UTC time; nil or zero gives the zero time
func fromSeconds(n *big.Int) time.Time {
	if n == nil || n.Sign() == 0 {
		return time.Time{}
	}
	return time.Unix(n.Int64(), 0).UTC()
}
