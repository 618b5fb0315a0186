package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/hydrogen-credit-ledger/internal/domain/shared"
)

// Event is a ledger mutation observed in the contract's logs
type Event struct {
	Operation       shared.Operation
	TransactionHash string
	BlockNumber     uint64
	LogIndex        uint
	TokenID         uint64
	From            *string
	To              *string
	FactoryID       *string
	GasUsed         uint64
	ObservedAt      time.Time
}

// LatestBlock returns the current head block number
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	const op = "latestBlock"
	if err := c.ensureReady(); err != nil {
		return 0, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	header, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, newError(op, err)
	}
	return header.Number.Uint64(), nil
}

// GetLedgerEvents returns mint, transfer and retire events in [from, to], in chain order
func (c *Client) GetLedgerEvents(ctx context.Context, from, to uint64) ([]Event, error) {
	const op = "getLedgerEvents"
	if err := c.ensureReady(); err != nil {
		return nil, err
	}
	if from > to {
		return nil, nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{eventIDs(c.abi)},
	})
	if err != nil {
		return nil, newError(op, err)
	}

	blockTimes := make(map[uint64]time.Time)
	gasByTx := make(map[common.Hash]uint64)

	events := make([]Event, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, ok, err := c.parseLog(l)
		if err != nil {
			c.logger.Warn("Skipping undecodable ledger log", "tx_hash", l.TxHash.Hex(), "log_index", l.Index, "error", err)
			continue
		}
		if !ok {
			continue
		}

		if _, seen := blockTimes[l.BlockNumber]; !seen {
			header, err := c.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(l.BlockNumber))
			if err != nil {
				return nil, newError(op, fmt.Errorf("failed to read block %d: %w", l.BlockNumber, err))
			}
			blockTimes[l.BlockNumber] = time.Unix(int64(header.Time), 0).UTC()
		}
		if _, seen := gasByTx[l.TxHash]; !seen {
			receipt, err := c.backend.TransactionReceipt(ctx, l.TxHash)
			if err != nil {
				return nil, newError(op, fmt.Errorf("failed to read receipt %s: %w", l.TxHash.Hex(), err))
			}
			gasByTx[l.TxHash] = receipt.GasUsed
		}

		ev.ObservedAt = blockTimes[l.BlockNumber]
		ev.GasUsed = gasByTx[l.TxHash]
		events = append(events, ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
	return events, nil
}

// parseLog decodes one contract log. Mint-side and burn-side TransferSingle logs are skipped.
func (c *Client) parseLog(l types.Log) (Event, bool, error) {
	if len(l.Topics) == 0 {
		return Event{}, false, nil
	}
	ev := Event{
		TransactionHash: l.TxHash.Hex(),
		BlockNumber:     l.BlockNumber,
		LogIndex:        l.Index,
	}

	switch l.Topics[0] {
	case c.abi.Events[eventTokenMinted].ID:
		if len(l.Topics) != 3 {
			return Event{}, false, fmt.Errorf("TokenMinted: expected 3 topics, got %d", len(l.Topics))
		}
		id, ok := tokenIDFromHash(l.Topics[1])
		if !ok {
			return Event{}, false, fmt.Errorf("TokenMinted: token id out of range")
		}
		values, err := c.abi.Unpack(eventTokenMinted, l.Data)
		if err != nil {
			return Event{}, false, fmt.Errorf("TokenMinted: %w", err)
		}
		factoryID, _ := values[0].(string)
		to := common.BytesToAddress(l.Topics[2].Bytes()).Hex()

		ev.Operation = shared.OperationMint
		ev.TokenID = id
		ev.To = &to
		ev.FactoryID = &factoryID
		return ev, true, nil

	case c.abi.Events[eventTransferSingle].ID:
		if len(l.Topics) != 4 || len(l.Data) < 64 {
			return Event{}, false, fmt.Errorf("TransferSingle: malformed log")
		}
		fromAddr := common.BytesToAddress(l.Topics[2].Bytes())
		toAddr := common.BytesToAddress(l.Topics[3].Bytes())
		if fromAddr == (common.Address{}) || toAddr == (common.Address{}) {
			return Event{}, false, nil
		}
		id, ok := tokenIDFromBytes(l.Data[:32])
		if !ok {
			return Event{}, false, fmt.Errorf("TransferSingle: token id out of range")
		}
		from, to := fromAddr.Hex(), toAddr.Hex()

		ev.Operation = shared.OperationTransfer
		ev.TokenID = id
		ev.From = &from
		ev.To = &to
		return ev, true, nil

	case c.abi.Events[eventTokenRetired].ID:
		if len(l.Topics) != 3 {
			return Event{}, false, fmt.Errorf("TokenRetired: expected 3 topics, got %d", len(l.Topics))
		}
		id, ok := tokenIDFromHash(l.Topics[1])
		if !ok {
			return Event{}, false, fmt.Errorf("TokenRetired: token id out of range")
		}
		by := common.BytesToAddress(l.Topics[2].Bytes()).Hex()

		ev.Operation = shared.OperationRetire
		ev.TokenID = id
		ev.From = &by
		return ev, true, nil
	}
	return Event{}, false, nil
}
