package components

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hydrogen-credit-ledger/internal/config"
	"github.com/hydrogen-credit-ledger/internal/domain/cursor"
	"github.com/hydrogen-credit-ledger/internal/domain/journal/journaltest"
	"github.com/hydrogen-credit-ledger/internal/domain/shared"
	"github.com/hydrogen-credit-ledger/internal/journal_processor/service"
	"github.com/hydrogen-credit-ledger/internal/ledger/ledgertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noCursor struct{}

func (noCursor) Get(_ context.Context, name string) (cursor.Cursor, error) {
	return cursor.Cursor{Name: name}, nil
}

func (noCursor) Set(context.Context, string, uint64) error { return nil }

func TestCreateRecordService(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := journaltest.NewRepository()

	t.Run("creates worker pool service with valid config", func(t *testing.T) {
		svc, pool := CreateRecordService(repo, logger, &config.Config{WorkerPool: config.WorkerPoolConfig{Size: 5}})
		require.NotNil(t, pool)
		defer pool.Shutdown()

		_, ok := svc.(*service.WorkerPoolRecordService)
		assert.True(t, ok)
		assert.Equal(t, 5, pool.Capacity())
	})

	t.Run("falls back to base service with invalid pool size", func(t *testing.T) {
		svc, pool := CreateRecordService(repo, logger, &config.Config{WorkerPool: config.WorkerPoolConfig{Size: -1}})

		assert.Nil(t, pool)
		_, ok := svc.(*service.JournalRecordService)
		assert.True(t, ok)
	})
}

func TestCreate_ReplayAndReconcileShareTheJournal(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := journaltest.NewRepository()
	chain := ledgertest.New("0x00000000000000000000000000000000000000ff")
	cfg := &config.Config{
		WorkerPool: config.WorkerPoolConfig{Size: 2},
		Reconciler: config.ReconcilerConfig{PollingInterval: time.Second, BlockBatchSize: 5},
	}

	c := Create(cfg, repo, noCursor{}, chain, nil, logger)
	defer c.Shutdown()

	minted, err := chain.Mint(ctx, "0x00000000000000000000000000000000000000a1", "HYDR8628QLA5")
	require.NoError(t, err)

	event := []byte(`{"transaction_hash":"` + minted.TransactionHash + `","operation":"MINT","token_id":1,` +
		`"to":"0x00000000000000000000000000000000000000a1","factory_id":"HYDR8628QLA5","observed_at":"2024-05-01T10:00:00Z"}`)
	require.NoError(t, c.Handler.HandleMessage(ctx, []byte(minted.TransactionHash), event))

	processed, err := c.Reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	records := repo.All()
	require.Len(t, records, 1)
	assert.Equal(t, shared.RecordSourceReplay, records[0].Source)
}
