// Package ledger is the only component that talks to the credit contract.
// Every operation returns either a value or a *Error carrying a Kind; callers
// never see raw RPC failures.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/hydrogen-credit-ledger/internal/config"
	"github.com/hydrogen-credit-ledger/internal/platform/chain"
	"github.com/panjf2000/ants/v2"
)

type state int

const (
	stateNew state = iota
	stateReady
	stateClosed
)

// Client wraps the contract. Construct with New, then Initialize before use.
type Client struct {
	cfg    config.LedgerConfig
	logger *slog.Logger
	dialer chain.Dialer

	mu         sync.RWMutex
	state      state
	backend    chain.Backend
	transactor *chain.Transactor
	contract   common.Address
	abi        abi.ABI
	pool       *ants.Pool
}

func New(cfg config.LedgerConfig, dialer chain.Dialer, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.With("component", "ledger_client"),
		dialer: dialer,
	}
}

// Initialize dials the RPC endpoint, loads the ABI and the signing key
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateNew {
		return errAlreadyInitialized
	}
	if !common.IsHexAddress(c.cfg.ContractAddress) {
		return fmt.Errorf("%w %q", errInvalidContract, c.cfg.ContractAddress)
	}

	parsed, err := ParseABI()
	if err != nil {
		return fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	backend, err := c.dialer.Dial(dialCtx, c.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to dial ledger RPC: %w", err)
	}

	chainID := big.NewInt(c.cfg.ChainID)
	if c.cfg.ChainID == 0 {
		chainID, err = backend.ChainID(dialCtx)
		if err != nil {
			backend.Close()
			return fmt.Errorf("failed to read chain id: %w", err)
		}
	}

	var transactor *chain.Transactor
	if c.cfg.PrivateKey != "" {
		transactor, err = chain.NewTransactor(backend, c.cfg.PrivateKey, chainID, c.cfg.ReceiptPollInterval)
		if err != nil {
			backend.Close()
			return err
		}
	}

	pool, err := ants.NewPool(c.cfg.BatchConcurrency)
	if err != nil {
		backend.Close()
		return fmt.Errorf("failed to create ledger worker pool: %w", err)
	}

	c.backend = backend
	c.transactor = transactor
	c.contract = common.HexToAddress(c.cfg.ContractAddress)
	c.abi = parsed
	c.pool = pool
	c.state = stateReady

	attrs := []any{"contract", c.contract.Hex(), "chain_id", chainID.String()}
	if transactor != nil {
		attrs = append(attrs, "operator", transactor.From().Hex())
	} else {
		attrs = append(attrs, "read_only", true)
	}
	c.logger.Info("Ledger client initialized", attrs...)
	return nil
}

// Connect retries Initialize on b until it succeeds, ctx is cancelled or b gives up.
// Configuration errors are not retried.
func (c *Client) Connect(ctx context.Context, b backoff.BackOff) error {
	return backoff.RetryNotify(func() error {
		err := c.Initialize(ctx)
		if errors.Is(err, errAlreadyInitialized) || errors.Is(err, errInvalidContract) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		c.logger.Warn("Ledger not reachable, retrying", "error", err, "retry_in", next)
	})
}

// ConnectBackOff retries without an elapsed-time limit, capped at 30s between attempts
func ConnectBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Close releases the RPC session; the client cannot be reused afterwards
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateReady {
		c.state = stateClosed
		return
	}
	c.pool.Release()
	c.backend.Close()
	c.state = stateClosed
	c.logger.Info("Ledger client closed")
}

// Ready reports whether operations may be issued
func (c *Client) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == stateReady
}

func (c *Client) ensureReady() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != stateReady {
		return ErrNotInitialized
	}
	return nil
}

// withTimeout bounds a single ledger operation
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.CallTimeout)
}

// readBackOff retries pure reads; mutations never go through it
func (c *Client) readBackOff(ctx context.Context) backoff.BackOff {
	if c.cfg.ReadRetryMaxElapsed <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.ReceiptPollInterval / 4
	if b.InitialInterval <= 0 {
		b.InitialInterval = backoff.DefaultInitialInterval
	}
	b.MaxElapsedTime = c.cfg.ReadRetryMaxElapsed
	return backoff.WithContext(b, ctx)
}

// call runs a view function and returns its decoded outputs
func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	var out []byte
	operation := func() error {
		res, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
		if err != nil {
			if isRevert(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = res
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Ledger read failed, retrying", "method", method, "error", err, "retry_in", wait)
	}
	if err := backoff.RetryNotify(operation, c.readBackOff(ctx), notify); err != nil {
		return nil, err
	}

	values, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	return values, nil
}

// callInto decodes a multi-output view function into a struct
func (c *Client) callInto(ctx context.Context, v interface{}, method string, args ...interface{}) error {
	values, err := c.call(ctx, method, args...)
	if err != nil {
		return err
	}
	return c.abi.Methods[method].Outputs.Copy(v, values)
}
