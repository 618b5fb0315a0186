package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrReverted is returned when a mined transaction has a failed status
var ErrReverted = errors.New("transaction reverted")

// gasHeadroom is added on top of the node's estimate, in percent
const gasHeadroom = 20

// Transactor signs and submits contract calls with one long-lived key.
// Nonce allocation is serialized so concurrent callers never reuse a nonce.
type Transactor struct {
	backend      Backend
	key          *ecdsa.PrivateKey
	from         common.Address
	signer       types.Signer
	pollInterval time.Duration

	mu sync.Mutex
}

// NewTransactor parses a hex private key, with or without 0x prefix
func NewTransactor(backend Backend, hexKey string, chainID *big.Int, pollInterval time.Duration) (*Transactor, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}
	if chainID == nil {
		return nil, errors.New("chain id is required")
	}
	return &Transactor{
		backend:      backend,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		signer:       types.LatestSignerForChainID(chainID),
		pollInterval: pollInterval,
	}, nil
}

// From returns the operator address
func (t *Transactor) From() common.Address {
	return t.from
}

// Send signs and broadcasts a call to contract with the given calldata
func (t *Transactor) Send(ctx context.Context, contract common.Address, data []byte) (*types.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	nonce, err := t.backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	gas, err := t.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: t.from,
		To:   &contract,
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	gas += gas * gasHeadroom / 100

	tx, err := types.SignTx(types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &contract,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	}), t.signer, t.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := t.backend.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	return tx, nil
}

// WaitMined polls for the receipt until it appears or ctx ends.
// A receipt with failed status is returned together with ErrReverted.
func (t *Transactor) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	operation := func() error {
		r, err := t.backend.TransactionReceipt(ctx, hash)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoff.NewConstantBackOff(t.pollInterval), ctx)); err != nil {
		return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("%w: %s", ErrReverted, hash.Hex())
	}
	return receipt, nil
}
