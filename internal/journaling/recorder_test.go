package journaling

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"testing"

	"github.com/hydrogen-credit-ledger/internal/domain/journal"
	"github.com/hydrogen-credit-ledger/internal/domain/journal/journaltest"
	"github.com/hydrogen-credit-ledger/internal/domain/shared"
	"github.com/hydrogen-credit-ledger/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func retireResult(hash string) *ledger.TxResult {
	return &ledger.TxResult{TransactionHash: hash, GasUsed: 42000, BlockNumber: 7}
}

func TestRecorder_RecordIsIdempotent(t *testing.T) {
	repo := journaltest.NewRepository()
	r := NewRecorder(newTestLogger(), repo, nil)
	ctx := context.Background()

	first, err := r.Record(ctx, RetireRecord(retireResult("0xaaa"), 5, "acc-1"))
	require.NoError(t, err)
	assert.Equal(t, shared.RecordSourceDirect, first.Source)
	assert.False(t, first.ObservedAt.IsZero())

	second, err := r.Record(ctx, RetireRecord(retireResult("0xaaa"), 5, "acc-1"))
	require.NoError(t, err)
	assert.Equal(t, first.ObservedAt, second.ObservedAt)

	count, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRecorder_RecordWrapsStoreErrors(t *testing.T) {
	repo := journaltest.NewRepository()
	repo.InsertErr = errors.New("mongo down")
	r := NewRecorder(newTestLogger(), repo, nil)

	_, err := r.Record(context.Background(), RetireRecord(retireResult("0xaaa"), 5, "acc-1"))
	assert.ErrorIs(t, err, ErrJournal)
}

func TestRecorder_RecordBestEffort(t *testing.T) {
	ctx := context.Background()

	t.Run("direct write", func(t *testing.T) {
		repo := journaltest.NewRepository()
		publisher := new(MockPublisher)
		r := NewRecorder(newTestLogger(), repo, publisher)

		rec := r.RecordBestEffort(ctx, RetireRecord(retireResult("0xaaa"), 5, "acc-1"), "corr-1")
		assert.Equal(t, "0xaaa", rec.TransactionHash)
		_, err := repo.GetByHash(ctx, "0xaaa")
		assert.NoError(t, err)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failed write is published for replay", func(t *testing.T) {
		repo := journaltest.NewRepository()
		repo.InsertErr = errors.New("mongo down")
		publisher := new(MockPublisher)
		r := NewRecorder(newTestLogger(), repo, publisher)

		publisher.On("Publish", mock.Anything, "0xaaa", mock.MatchedBy(func(e shared.JournalEvent) bool {
			return e.TransactionHash == "0xaaa" && e.CorrelationID == "corr-1" && e.FailureReason != ""
		})).Return(nil).Once()

		rec := r.RecordBestEffort(ctx, RetireRecord(retireResult("0xaaa"), 5, "acc-1"), "corr-1")
		assert.Equal(t, "0xaaa", rec.TransactionHash)
		publisher.AssertExpectations(t)
	})

	t.Run("publish failure is swallowed", func(t *testing.T) {
		repo := journaltest.NewRepository()
		repo.InsertErr = errors.New("mongo down")
		publisher := new(MockPublisher)
		r := NewRecorder(newTestLogger(), repo, publisher)

		publisher.On("Publish", mock.Anything, "0xaaa", mock.Anything).Return(errors.New("kafka down")).Once()

		assert.NotPanics(t, func() {
			r.RecordBestEffort(ctx, RetireRecord(retireResult("0xaaa"), 5, "acc-1"), "corr-1")
		})
	})

	t.Run("canceled request context still writes", func(t *testing.T) {
		repo := journaltest.NewRepository()
		r := NewRecorder(newTestLogger(), repo, nil)
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		r.RecordBestEffort(canceled, RetireRecord(retireResult("0xbbb"), 6, "acc-1"), "corr-2")
		_, err := repo.GetByHash(ctx, "0xbbb")
		assert.NoError(t, err)
	})
}

func TestRecorder_AttachRecipient(t *testing.T) {
	ctx := context.Background()
	repo := journaltest.NewRepository()
	r := NewRecorder(newTestLogger(), repo, nil)

	res := &ledger.TxResult{TransactionHash: "0xccc", GasUsed: 1, BlockNumber: 1}
	_, err := r.Record(ctx, TransferRecord(res, 42, "0xA", "0xB", "producer"))
	require.NoError(t, err)

	require.NoError(t, r.AttachRecipient(ctx, "0xccc", "buyer"))
	require.NoError(t, r.AttachRecipient(ctx, "0xccc", "someone-else"))

	stored, err := r.GetByHash(ctx, "0xccc")
	require.NoError(t, err)
	require.NotNil(t, stored.RecipientAccountID)
	assert.Equal(t, "buyer", *stored.RecipientAccountID)

	err = r.AttachRecipient(ctx, "0xmissing", "buyer")
	assert.ErrorIs(t, err, ErrJournal)
	assert.ErrorIs(t, err, journal.ErrRecordNotFound{})
}

func TestRecorder_ListByAccount(t *testing.T) {
	ctx := context.Background()
	repo := journaltest.NewRepository()
	r := NewRecorder(newTestLogger(), repo, nil)

	for i, hash := range []string{"0x1", "0x2", "0x3"} {
		initiator := "producer"
		if i == 2 {
			initiator = "other"
		}
		_, err := r.Record(ctx, RetireRecord(retireResult(hash), uint64(i+1), initiator))
		require.NoError(t, err)
	}

	page, err := r.ListByAccount(ctx, "producer", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Records, 1)

	all, err := r.ListByAccount(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	assert.Equal(t, 1, all.Page)
	assert.Equal(t, 20, all.PerPage)

	beyond, err := r.ListByAccount(ctx, "producer", math.MaxInt, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2), beyond.Total)
	assert.Empty(t, beyond.Records)
}
