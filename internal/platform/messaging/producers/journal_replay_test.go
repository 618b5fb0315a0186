package producers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/hydrogen-credit-ledger/internal/domain/shared"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockKafkaWriter mocks KafkaWriter interface
type MockKafkaWriter struct {
	mock.Mock
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockKafkaWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ KafkaWriter = (*MockKafkaWriter)(nil)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestJournalReplayProducer_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessfulPublish", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &JournalReplayProducer{logger: newTestLogger(), writer: mockWriter, topic: "journal_replay"}

		event := shared.JournalEvent{TransactionHash: "0xabc", Operation: shared.OperationRetire, TokenID: 3}
		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || string(msgs[0].Key) != "0xabc" {
				return false
			}
			var decoded shared.JournalEvent
			if err := json.Unmarshal(msgs[0].Value, &decoded); err != nil {
				return false
			}
			return decoded.TransactionHash == "0xabc" && decoded.TokenID == 3
		})).Return(nil).Once()

		require.NoError(t, producer.Publish(ctx, "0xabc", event))
		mockWriter.AssertExpectations(t)
	})

	t.Run("WriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &JournalReplayProducer{logger: newTestLogger(), writer: mockWriter, topic: "journal_replay"}
		writerErr := errors.New("kafka write error")

		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerErr).Once()

		err := producer.Publish(ctx, "0xabc", map[string]string{"k": "v"})
		assert.ErrorIs(t, err, writerErr)
	})

	t.Run("UnencodableValue", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &JournalReplayProducer{logger: newTestLogger(), writer: mockWriter, topic: "journal_replay"}

		err := producer.Publish(ctx, "0xabc", make(chan int))
		assert.Error(t, err)
		mockWriter.AssertNotCalled(t, "WriteMessages", mock.Anything, mock.Anything)
	})
}

func TestJournalReplayProducer_Close(t *testing.T) {
	mockWriter := new(MockKafkaWriter)
	producer := &JournalReplayProducer{logger: newTestLogger(), writer: mockWriter, topic: "journal_replay"}
	closeErr := errors.New("close failed")

	mockWriter.On("Close").Return(closeErr).Once()

	assert.ErrorIs(t, producer.Close(), closeErr)
}
