package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/hydrogen-credit-ledger/internal/domain/token"
)

// ErrNotInitialized is returned by every operation outside the ready state
var ErrNotInitialized = errors.New("ledger client is not initialized")

// ErrReadOnly is returned by mutations when no signing key is configured
var ErrReadOnly = errors.New("ledger client has no signing key")

var (
	errAlreadyInitialized = errors.New("ledger client already initialized")
	errInvalidContract    = errors.New("invalid contract address")
)

// Kind classifies ledger failures for callers
type Kind string

const (
	KindLedger         Kind = "LEDGER_ERROR"
	KindTimeout        Kind = "TIMEOUT"
	KindMintUnresolved Kind = "MINT_UNRESOLVED"
	KindNotFound       Kind = "NOT_FOUND"
)

// Error is the failure shape of every ledger operation
type Error struct {
	Kind   Kind
	Op     string
	TxHash string // Set when the transaction was broadcast
	Err    error
}

func (e *Error) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("ledger %s (%s, tx %s): %v", e.Op, e.Kind, e.TxHash, e.Err)
	}
	return fmt.Sprintf("ledger %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from err
func KindOf(err error) (Kind, bool) {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return "", false
}

// Message returns the underlying ledger message without the operation prefix
func Message(err error) string {
	var le *Error
	if errors.As(err, &le) && le.Err != nil {
		return le.Err.Error()
	}
	return err.Error()
}

func newError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotInitialized) {
		return err
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	return &Error{Kind: classify(err), Op: op, Err: err}
}

// classify maps context expiry to KindTimeout; an unconfirmed call may still land
func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindLedger
}

func notFound(op string, id uint64) error {
	return &Error{Kind: KindNotFound, Op: op, Err: token.ErrTokenNotFound{TokenID: id}}
}

// isRevert reports whether a call failed inside the contract rather than in transport
func isRevert(err error) bool {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}
