package producers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDLQProducer_PublishToDLQ(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessfulPublishToDLQ", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &DLQProducer{logger: newTestLogger(), writer: mockWriter, dlqTopic: "journal_replay_dlq", sourceTopic: "journal_replay"}

		original := []byte(`{"transaction_hash":`)
		mockWriter.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
			if len(msgs) != 1 || string(msgs[0].Key) != "0xabc" {
				return false
			}
			var payload DLQMessage
			if err := json.Unmarshal(msgs[0].Value, &payload); err != nil {
				return false
			}
			return payload.OriginalValue == string(original) &&
				payload.SourceTopic == "journal_replay" &&
				payload.DLQReason == "decode failed" &&
				payload.Timestamp != "" &&
				len(msgs[0].Headers) == 2
		})).Return(nil).Once()

		require.NoError(t, producer.PublishToDLQ(ctx, "0xabc", original, "decode failed"))
		mockWriter.AssertExpectations(t)
	})

	t.Run("WriterError", func(t *testing.T) {
		mockWriter := new(MockKafkaWriter)
		producer := &DLQProducer{logger: newTestLogger(), writer: mockWriter, dlqTopic: "journal_replay_dlq"}
		writerErr := errors.New("kafka DLQ write error")

		mockWriter.On("WriteMessages", ctx, mock.AnythingOfType("[]kafka.Message")).Return(writerErr).Once()

		assert.ErrorIs(t, producer.PublishToDLQ(ctx, "k", []byte("v"), "r"), writerErr)
	})

	t.Run("NilProducer", func(t *testing.T) {
		var producer *DLQProducer
		assert.ErrorIs(t, producer.PublishToDLQ(ctx, "k", []byte("v"), "r"), ErrDLQDisabled)
		assert.NoError(t, producer.Close())
	})
}
