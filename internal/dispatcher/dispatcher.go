package dispatcher

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hydrogen-credit-ledger/internal/config"
	"github.com/hydrogen-credit-ledger/internal/domain/account"
	"github.com/hydrogen-credit-ledger/internal/domain/token"
	"github.com/hydrogen-credit-ledger/internal/identity"
	"github.com/hydrogen-credit-ledger/internal/journaling"
	"github.com/hydrogen-credit-ledger/internal/ledger"
	"github.com/hydrogen-credit-ledger/internal/readmodel"
)

// Ledger is the mutating side of the ledger client
type Ledger interface {
	Mint(ctx context.Context, to string, factoryID string) (*ledger.MintResult, error)
	Transfer(ctx context.Context, from, to string, tokenID uint64) (*ledger.TxResult, error)
	Retire(ctx context.Context, tokenID uint64) (*ledger.TxResult, error)
}

// Dispatcher is the single entry point for caller commands
type Dispatcher struct {
	accounts account.Repository
	ledger   Ledger
	resolver *identity.Resolver
	journal  *journaling.Recorder
	views    *readmodel.Merger
	mintCfg  config.MintConfig
	logger   *slog.Logger
}

func New(
	logger *slog.Logger,
	accounts account.Repository,
	ledger Ledger,
	resolver *identity.Resolver,
	journal *journaling.Recorder,
	views *readmodel.Merger,
	mintCfg config.MintConfig,
) *Dispatcher {
	return &Dispatcher{
		accounts: accounts,
		ledger:   ledger,
		resolver: resolver,
		journal:  journal,
		views:    views,
		mintCfg:  mintCfg,
		logger:   logger,
	}
}

// execute loads the caller, authorizes cmd and runs fn, logging each state change.
// A rejected command never reaches fn.
func execute[T any](ctx context.Context, d *Dispatcher, cmd Command, callerID string, fn func(caller *account.Account) (T, error)) (T, error) {
	var zero T
	log := d.logger.With("command", string(cmd), "caller_id", callerID)
	log.Debug("Command state", "state", StateReceived)

	caller, err := d.accounts.GetByID(ctx, callerID)
	if err != nil {
		log.Warn("Command state", "state", StateRejected, "error", err)
		return zero, err
	}
	if !Allowed(caller.Role, cmd) {
		log.Warn("Command state", "state", StateRejected, "role", string(caller.Role))
		return zero, ErrUnauthorized
	}
	log.Debug("Command state", "state", StateAuthorized, "role", string(caller.Role))

	log.Debug("Command state", "state", StateExecuting)
	result, err := fn(caller)
	if err != nil {
		log.Error("Command state", "state", StateFailed, "error", err)
		return zero, err
	}
	log.Info("Command state", "state", StateSucceeded)
	return result, nil
}

// MintOutcome is the result of one attempt in a mint batch
type MintOutcome struct {
	Attempt         int    `json:"attempt"`
	Success         bool   `json:"success"`
	TokenID         uint64 `json:"token_id,omitempty"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	GasUsed         uint64 `json:"gas_used,omitempty"`
	ErrorKind       string `json:"error_kind,omitempty"`
	Error           string `json:"error,omitempty"`
}

// MintBatch lists every attempt in submission order, plus the split by result
type MintBatch struct {
	FactoryID string        `json:"factory_id"`
	Outcomes  []MintOutcome `json:"outcomes"`
	Succeeded []MintOutcome `json:"succeeded"`
	Failed    []MintOutcome `json:"failed"`
}

// Mint runs quantity sequential mints to the producer's wallet. A failed attempt
// does not stop the batch.
func (d *Dispatcher) Mint(ctx context.Context, callerID, factoryID string, quantity int) (*MintBatch, error) {
	return execute(ctx, d, CommandMint, callerID, func(caller *account.Account) (*MintBatch, error) {
		if quantity < 1 || quantity > d.mintCfg.MaxQuantity {
			return nil, ErrInvalidQuantity
		}
		if f := account.NormalizeFactoryID(factoryID); f != "" && f != caller.FactoryID {
			return nil, ErrFactoryMismatch
		}
		if !caller.HasWallet() {
			return nil, account.ErrMissingWallet{AccountID: caller.ID}
		}

		batch := &MintBatch{
			FactoryID: caller.FactoryID,
			Outcomes:  make([]MintOutcome, 0, quantity),
			Succeeded: make([]MintOutcome, 0, quantity),
			Failed:    make([]MintOutcome, 0),
		}
		for attempt := 1; attempt <= quantity; attempt++ {
			outcome := MintOutcome{Attempt: attempt}

			res, err := d.ledger.Mint(ctx, caller.Wallet(), caller.FactoryID)
			if err != nil {
				outcome.Error = ledger.Message(err)
				if kind, ok := ledger.KindOf(err); ok {
					outcome.ErrorKind = string(kind)
				}
				d.logger.Warn("Mint attempt failed", "attempt", attempt, "factory_id", caller.FactoryID, "error", err)
				batch.Failed = append(batch.Failed, outcome)
			} else {
				outcome.Success = true
				outcome.TokenID = res.TokenID
				outcome.TransactionHash = res.TransactionHash
				outcome.GasUsed = res.GasUsed
				d.journal.RecordBestEffort(ctx, journaling.MintRecord(res, caller.FactoryID, caller.ID), correlationID(ctx))
				batch.Succeeded = append(batch.Succeeded, outcome)
			}
			batch.Outcomes = append(batch.Outcomes, outcome)
		}
		return batch, nil
	})
}

// TransferResult is a confirmed transfer
type TransferResult struct {
	ledger.TxResult
	TokenID            uint64 `json:"token_id"`
	From               string `json:"from"`
	To                 string `json:"to"`
	RecipientAccountID string `json:"recipient_account_id,omitempty"`
}

// Transfer sends a token from the caller's wallet to an address
func (d *Dispatcher) Transfer(ctx context.Context, callerID string, tokenID uint64, to string) (*TransferResult, error) {
	return execute(ctx, d, CommandTransfer, callerID, func(caller *account.Account) (*TransferResult, error) {
		if !common.IsHexAddress(strings.TrimSpace(to)) {
			return nil, ErrInvalidAddress
		}
		return d.transfer(ctx, caller, tokenID, common.HexToAddress(strings.TrimSpace(to)).Hex(), "")
	})
}

// TransferByIdentifier resolves the recipient first, then runs the same transfer
// with the recipient account on the journal record.
func (d *Dispatcher) TransferByIdentifier(ctx context.Context, callerID string, tokenID uint64, identifier string) (*TransferResult, error) {
	return execute(ctx, d, CommandTransfer, callerID, func(caller *account.Account) (*TransferResult, error) {
		if strings.TrimSpace(identifier) == "" {
			return nil, ErrNoRecipient
		}
		recipient, err := d.resolver.Resolve(ctx, identifier)
		if err != nil {
			return nil, err
		}

		return d.transfer(ctx, caller, tokenID, recipient.Wallet(), recipient.ID)
	})
}

// transfer moves tokenID to the address to. A non-empty recipientID is written with
// the journal record, so a replayed record carries it too.
func (d *Dispatcher) transfer(ctx context.Context, caller *account.Account, tokenID uint64, to, recipientID string) (*TransferResult, error) {
	if !caller.HasWallet() {
		return nil, account.ErrMissingWallet{AccountID: caller.ID}
	}
	from := caller.Wallet()

	res, err := d.ledger.Transfer(ctx, from, to, tokenID)
	if err != nil {
		return nil, err
	}

	rec := journaling.TransferRecord(res, tokenID, from, to, caller.ID)
	if recipientID != "" {
		rec.RecipientAccountID = &recipientID
	}
	stored := d.journal.RecordBestEffort(ctx, rec, correlationID(ctx))
	// A record backfilled earlier by the reconciler has no recipient yet
	if recipientID != "" && stored.RecipientAccountID == nil {
		if err := d.journal.AttachRecipient(ctx, res.TransactionHash, recipientID); err != nil {
			d.logger.Warn("Could not attach recipient to journal record",
				"transaction_hash", res.TransactionHash,
				"error", err)
		}
	}

	return &TransferResult{TxResult: *res, TokenID: tokenID, From: from, To: to, RecipientAccountID: recipientID}, nil
}

// Retire permanently removes a token from circulation; the ledger decides whether the caller may
func (d *Dispatcher) Retire(ctx context.Context, callerID string, tokenID uint64) (*ledger.TxResult, error) {
	return execute(ctx, d, CommandRetire, callerID, func(caller *account.Account) (*ledger.TxResult, error) {
		res, err := d.ledger.Retire(ctx, tokenID)
		if err != nil {
			return nil, err
		}
		d.journal.RecordBestEffort(ctx, journaling.RetireRecord(res, tokenID, caller.ID), correlationID(ctx))
		return res, nil
	})
}

func (d *Dispatcher) ListTokens(ctx context.Context, callerID string, q readmodel.ListQuery) (*readmodel.Dashboard, error) {
	return execute(ctx, d, CommandListTokens, callerID, func(caller *account.Account) (*readmodel.Dashboard, error) {
		return d.views.View(ctx, caller, q)
	})
}

// OwnedTokens lists what the caller's wallet currently holds
func (d *Dispatcher) OwnedTokens(ctx context.Context, callerID string) ([]readmodel.Credit, error) {
	return execute(ctx, d, CommandListTokens, callerID, func(caller *account.Account) ([]readmodel.Credit, error) {
		return d.views.OwnedView(ctx, caller)
	})
}

func (d *Dispatcher) TokenDetails(ctx context.Context, callerID string, tokenID uint64) (*readmodel.Credit, error) {
	return execute(ctx, d, CommandTokenDetails, callerID, func(*account.Account) (*readmodel.Credit, error) {
		return d.views.TokenDetails(ctx, tokenID)
	})
}

func (d *Dispatcher) TokenHistory(ctx context.Context, callerID string, tokenID uint64) ([]token.OwnershipEntry, error) {
	return execute(ctx, d, CommandTokenDetails, callerID, func(*account.Account) ([]token.OwnershipEntry, error) {
		return d.views.TokenHistory(ctx, tokenID)
	})
}

func (d *Dispatcher) Stats(ctx context.Context, callerID string) (*readmodel.Stats, error) {
	return execute(ctx, d, CommandStats, callerID, func(*account.Account) (*readmodel.Stats, error) {
		return d.views.Stats(ctx)
	})
}

func (d *Dispatcher) Search(ctx context.Context, callerID string, q readmodel.SearchQuery) (*readmodel.SearchResult, error) {
	return execute(ctx, d, CommandSearch, callerID, func(*account.Account) (*readmodel.SearchResult, error) {
		return d.views.AdvancedSearch(ctx, q)
	})
}

func (d *Dispatcher) Factories(ctx context.Context, callerID string) ([]readmodel.Factory, error) {
	return execute(ctx, d, CommandFactoryList, callerID, func(*account.Account) ([]readmodel.Factory, error) {
		return d.views.Factories(ctx)
	})
}

// ResolveRecipient previews who a transfer by identifier would reach
func (d *Dispatcher) ResolveRecipient(ctx context.Context, callerID, identifier string) (*account.Account, error) {
	return execute(ctx, d, CommandResolveRecipient, callerID, func(*account.Account) (*account.Account, error) {
		return d.resolver.Resolve(ctx, identifier)
	})
}

// Transactions lists the caller's journal records; regulators and certifiers see all of them
func (d *Dispatcher) Transactions(ctx context.Context, callerID string, page, perPage int) (*journaling.Page, error) {
	return execute(ctx, d, CommandTransactions, callerID, func(caller *account.Account) (*journaling.Page, error) {
		scope := caller.ID
		switch caller.Role {
		case account.RoleRegulator, account.RoleCertifier:
			scope = ""
		case account.RoleProducer, account.RoleBuyer:
		}
		return d.journal.ListByAccount(ctx, scope, page, perPage)
	})
}
