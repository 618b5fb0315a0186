package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxResult describes a confirmed ledger mutation
type TxResult struct {
	TransactionHash string `json:"transaction_hash"`
	GasUsed         uint64 `json:"gas_used"`
	BlockNumber     uint64 `json:"block_number"`
}

// MintResult is a confirmed mint with the token id read from its events
type MintResult struct {
	TxResult
	TokenID uint64 `json:"token_id"`
	To      string `json:"to"`
}

// Mint issues one new credit to the given address tagged with factoryID
func (c *Client) Mint(ctx context.Context, to string, factoryID string) (*MintResult, error) {
	const op = "mint"
	if err := c.ensureReady(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(factoryID) == "" {
		return nil, &Error{Kind: KindLedger, Op: op, Err: errors.New("factory id cannot be empty")}
	}
	if !common.IsHexAddress(to) {
		return nil, &Error{Kind: KindLedger, Op: op, Err: fmt.Errorf("invalid recipient address %q", to)}
	}
	recipient := common.HexToAddress(to)

	receipt, err := c.transact(ctx, op, "mint", recipient, factoryID)
	if err != nil {
		return nil, err
	}

	tokenID, ok := c.mintedTokenID(receipt)
	if !ok {
		c.logger.Error("Mint confirmed but token id could not be read from events",
			"tx_hash", receipt.TxHash.Hex(), "factory_id", factoryID)
		return nil, &Error{
			Kind:   KindMintUnresolved,
			Op:     op,
			TxHash: receipt.TxHash.Hex(),
			Err:    errors.New("mint confirmed without a TokenMinted event; token id needs reconciliation"),
		}
	}

	c.logger.Info("Mint confirmed", "token_id", tokenID, "to", recipient.Hex(), "factory_id", factoryID, "tx_hash", receipt.TxHash.Hex())
	return &MintResult{
		TxResult: txResult(receipt),
		TokenID:  tokenID,
		To:       recipient.Hex(),
	}, nil
}

// Transfer moves a single credit between two addresses
func (c *Client) Transfer(ctx context.Context, from, to string, tokenID uint64) (*TxResult, error) {
	const op = "transfer"
	if err := c.ensureReady(); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(from) || !common.IsHexAddress(to) {
		return nil, &Error{Kind: KindLedger, Op: op, Err: errors.New("from and to must be valid addresses")}
	}

	receipt, err := c.transact(ctx, op, "safeTransferFrom",
		common.HexToAddress(from), common.HexToAddress(to), new(big.Int).SetUint64(tokenID), big.NewInt(1), []byte{})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Transfer confirmed", "token_id", tokenID, "from", from, "to", to, "tx_hash", receipt.TxHash.Hex())
	res := txResult(receipt)
	return &res, nil
}

// Retire permanently takes a credit out of circulation
func (c *Client) Retire(ctx context.Context, tokenID uint64) (*TxResult, error) {
	const op = "retire"
	if err := c.ensureReady(); err != nil {
		return nil, err
	}

	receipt, err := c.transact(ctx, op, "retire", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return nil, err
	}

	c.logger.Info("Retire confirmed", "token_id", tokenID, "tx_hash", receipt.TxHash.Hex())
	res := txResult(receipt)
	return &res, nil
}

// transact sends one transaction and waits for it under the call timeout. It is never retried.
func (c *Client) transact(ctx context.Context, op, method string, args ...interface{}) (*types.Receipt, error) {
	if c.transactor == nil {
		return nil, &Error{Kind: KindLedger, Op: op, Err: ErrReadOnly}
	}

	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, &Error{Kind: KindLedger, Op: op, Err: fmt.Errorf("failed to pack %s: %w", method, err)}
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	tx, err := c.transactor.Send(ctx, c.contract, data)
	if err != nil {
		return nil, newError(op, err)
	}

	receipt, err := c.transactor.WaitMined(ctx, tx.Hash())
	if err != nil {
		le := &Error{Kind: classify(err), Op: op, TxHash: tx.Hash().Hex(), Err: err}
		if le.Kind == KindTimeout {
			c.logger.Warn("Ledger mutation unconfirmed within timeout", "op", op, "tx_hash", le.TxHash)
		}
		return nil, le
	}
	return receipt, nil
}

// mintedTokenID reads the id from TokenMinted, or a TransferSingle from the zero address
func (c *Client) mintedTokenID(receipt *types.Receipt) (uint64, bool) {
	minted := c.abi.Events[eventTokenMinted].ID
	transfer := c.abi.Events[eventTransferSingle].ID

	for _, l := range receipt.Logs {
		if l.Address != c.contract || len(l.Topics) == 0 {
			continue
		}
		if l.Topics[0] == minted && len(l.Topics) >= 2 {
			return tokenIDFromHash(l.Topics[1])
		}
	}
	for _, l := range receipt.Logs {
		if l.Address != c.contract || len(l.Topics) != 4 || l.Topics[0] != transfer {
			continue
		}
		if common.BytesToAddress(l.Topics[2].Bytes()) == (common.Address{}) && len(l.Data) >= 32 {
			return tokenIDFromBytes(l.Data[:32])
		}
	}
	return 0, false
}

func txResult(r *types.Receipt) TxResult {
	res := TxResult{
		TransactionHash: r.TxHash.Hex(),
		GasUsed:         r.GasUsed,
	}
	if r.BlockNumber != nil {
		res.BlockNumber = r.BlockNumber.Uint64()
	}
	return res
}

func tokenIDFromHash(h common.Hash) (uint64, bool) {
	return tokenIDFromBytes(h.Bytes())
}

func tokenIDFromBytes(b []byte) (uint64, bool) {
	n := new(big.Int).SetBytes(b)
	if !n.IsUint64() {
		return 0, false
	}
	return n.Uint64(), true
}
