package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hydrogen-credit-ledger/internal/domain/journal"
	"github.com/hydrogen-credit-ledger/internal/domain/shared"
	"github.com/hydrogen-credit-ledger/internal/journal_processor/service"
	"github.com/hydrogen-credit-ledger/internal/platform/messaging/producers"
)

// JournalEventHandler replays journal records whose direct write failed in the gateway
type JournalEventHandler struct {
	recordService service.RecordService
	producer      producers.DeadLetterPublisher
	logger        *slog.Logger
}

// NewJournalEventHandler creates a new handler; producer may be nil when no DLQ is configured
func NewJournalEventHandler(
	logger *slog.Logger,
	recordService service.RecordService,
	producer producers.DeadLetterPublisher,
) *JournalEventHandler {
	return &JournalEventHandler{
		recordService: recordService,
		producer:      producer,
		logger:        logger,
	}
}

// HandleMessage stores one replayed record. A nil return commits the offset.
func (h *JournalEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.JournalEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return h.deadLetter(ctx, key, value, "Failed to unmarshal journal event from Kafka message", err)
	}

	rec := journal.FromEvent(event)
	if err := rec.Validate(); err != nil {
		return h.deadLetter(ctx, key, value, "Journal event does not describe a valid record", err)
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Received journal event for replay",
		"transaction_hash", rec.TransactionHash,
		"operation", rec.Operation,
		"token_id", rec.TokenID,
		"failure_reason", event.FailureReason,
	)

	if err := h.recordService.StoreRecord(ctx, rec); err != nil {
		logger.Error("Failed to replay journal record",
			"transaction_hash", rec.TransactionHash,
			"error", err,
		)
		return fmt.Errorf("replaying journal record %s failed: %w", rec.TransactionHash, err)
	}

	return nil
}

// deadLetter parks a message that can never succeed. If the DLQ is unavailable the
// error is returned so the message is retried rather than lost.
func (h *JournalEventHandler) deadLetter(ctx context.Context, key, value []byte, reason string, cause error) error {
	h.logger.Error(reason, "error", cause, "message_key", string(key))

	if h.producer != nil {
		dlqReason := fmt.Sprintf("%s: %s", reason, cause.Error())
		if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
			h.logger.Error("Failed to publish message to DLQ",
				"dlq_error", dlqErr,
				"original_error", cause,
				"message_key", string(key),
			)
		} else {
			h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
			return nil
		}
	}
	return fmt.Errorf("unprocessable journal event: %w", cause)
}
