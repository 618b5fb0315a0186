// Package chain adapts go-ethereum's RPC client to the narrow surface the ledger
// client needs and owns transaction signing for the single operator key.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of ethclient.Client used by this service
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

var _ Backend = (*ethclient.Client)(nil)

// Dialer opens a Backend for an RPC endpoint
type Dialer interface {
	Dial(ctx context.Context, rawurl string) (Backend, error)
}

// EthDialer dials real nodes through ethclient
type EthDialer struct{}

func NewDialer() Dialer {
	return EthDialer{}
}

func (EthDialer) Dial(ctx context.Context, rawurl string) (Backend, error) {
	return ethclient.DialContext(ctx, rawurl)
}
