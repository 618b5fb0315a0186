package reconciler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hydrogen-credit-ledger/internal/config"
	"github.com/hydrogen-credit-ledger/internal/domain/cursor"
	"github.com/hydrogen-credit-ledger/internal/domain/journal/journaltest"
	"github.com/hydrogen-credit-ledger/internal/domain/shared"
	"github.com/hydrogen-credit-ledger/internal/journal_processor/service"
	"github.com/hydrogen-credit-ledger/internal/journaling"
	"github.com/hydrogen-credit-ledger/internal/ledger/ledgertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	producerWallet = "0x00000000000000000000000000000000000000a1"
	buyerWallet    = "0x00000000000000000000000000000000000000b2"
)

type memoryCursors struct {
	mu      sync.Mutex
	cursors map[string]cursor.Cursor
	setErr  error
}

func newMemoryCursors() *memoryCursors {
	return &memoryCursors{cursors: make(map[string]cursor.Cursor)}
}

func (m *memoryCursors) Get(_ context.Context, name string) (cursor.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cursors[name]
	if !ok {
		return cursor.Cursor{Name: name}, nil
	}
	return c, nil
}

func (m *memoryCursors) Set(_ context.Context, name string, blockNumber uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.cursors[name] = cursor.Cursor{Name: name, BlockNumber: blockNumber, UpdatedAt: time.Now()}
	return nil
}

type fixture struct {
	ledger  *ledgertest.Ledger
	journal *journaltest.Repository
	cursors *memoryCursors
	logger  *slog.Logger
}

func newFixture() *fixture {
	return &fixture{
		ledger:  ledgertest.New("0x00000000000000000000000000000000000000ff"),
		journal: journaltest.NewRepository(),
		cursors: newMemoryCursors(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (f *fixture) reconciler(cfg config.ReconcilerConfig) *Reconciler {
	return NewReconciler(&cfg, f.ledger, f.cursors, service.NewJournalRecordService(f.journal, f.logger), f.logger)
}

func TestReconciler_BackfillsMissingRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	// Block 1: mint journaled directly. Block 2: mint whose journal write was lost.
	// Blocks 3 and 4: transfer and retire never journaled.
	minted, err := f.ledger.Mint(ctx, producerWallet, "HYDR8628QLA5")
	require.NoError(t, err)
	_, _, err = f.journal.Insert(ctx, journaling.MintRecord(minted, "HYDR8628QLA5", "65f0a1b2c3d4e5f6a7b8c9d0"))
	require.NoError(t, err)

	second, err := f.ledger.Mint(ctx, producerWallet, "HYDR8628QLA5")
	require.NoError(t, err)
	_, err = f.ledger.Transfer(ctx, producerWallet, buyerWallet, second.TokenID)
	require.NoError(t, err)
	_, err = f.ledger.Retire(ctx, second.TokenID)
	require.NoError(t, err)

	r := f.reconciler(config.ReconcilerConfig{PollingInterval: time.Second, BlockBatchSize: 3})

	processed, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, processed)

	records := f.journal.All()
	require.Len(t, records, 4)

	bySource := map[shared.RecordSource]int{}
	for _, rec := range records {
		bySource[rec.Source]++
	}
	assert.Equal(t, 1, bySource[shared.RecordSourceDirect])
	assert.Equal(t, 3, bySource[shared.RecordSourceReconciler])

	c, _ := f.cursors.Get(ctx, CursorName)
	assert.Equal(t, uint64(4), c.BlockNumber)

	processed, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestReconciler_LeavesUnconfirmedBlocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	for i := 0; i < 3; i++ {
		_, err := f.ledger.Mint(ctx, producerWallet, "HYDR8628QLA5")
		require.NoError(t, err)
	}

	r := f.reconciler(config.ReconcilerConfig{PollingInterval: time.Second, BlockBatchSize: 10, Confirmations: 2})

	processed, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	c, _ := f.cursors.Get(ctx, CursorName)
	assert.Equal(t, uint64(1), c.BlockNumber)
}

func TestReconciler_StartBlockAppliesOnlyWithoutCursor(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	for i := 0; i < 4; i++ {
		_, err := f.ledger.Mint(ctx, producerWallet, "HYDR8628QLA5")
		require.NoError(t, err)
	}

	r := f.reconciler(config.ReconcilerConfig{PollingInterval: time.Second, BlockBatchSize: 10, StartBlock: 3})

	processed, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
}

func TestReconciler_DoesNotAdvanceOnFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("ledger read fails", func(t *testing.T) {
		f := newFixture()
		_, err := f.ledger.Mint(ctx, producerWallet, "HYDR8628QLA5")
		require.NoError(t, err)
		f.ledger.FailReads(errors.New("rpc unavailable"))

		_, err = f.reconciler(config.ReconcilerConfig{PollingInterval: time.Second, BlockBatchSize: 10}).RunOnce(ctx)

		assert.Error(t, err)
		c, _ := f.cursors.Get(ctx, CursorName)
		assert.True(t, c.UpdatedAt.IsZero())
	})

	t.Run("journal write fails", func(t *testing.T) {
		f := newFixture()
		_, err := f.ledger.Mint(ctx, producerWallet, "HYDR8628QLA5")
		require.NoError(t, err)
		f.journal.InsertErr = errors.New("mongo down")

		_, err = f.reconciler(config.ReconcilerConfig{PollingInterval: time.Second, BlockBatchSize: 10}).RunOnce(ctx)

		assert.ErrorIs(t, err, f.journal.InsertErr)
		c, _ := f.cursors.Get(ctx, CursorName)
		assert.True(t, c.UpdatedAt.IsZero())
	})
}

func TestReconciler_StartStopsOnCancel(t *testing.T) {
	f := newFixture()
	r := f.reconciler(config.ReconcilerConfig{PollingInterval: 10 * time.Millisecond, BlockBatchSize: 10})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	_, err := f.ledger.Mint(context.Background(), producerWallet, "HYDR8628QLA5")
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(f.journal.All()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
