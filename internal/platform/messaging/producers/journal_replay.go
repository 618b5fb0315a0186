package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hydrogen-credit-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// JournalReplayProducer carries journal records whose direct write failed.
// Writes are synchronous: a lost replay message is a lost record.
type JournalReplayProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewJournalReplayProducer ensures the replay topic exists and opens a writer for it
func NewJournalReplayProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*JournalReplayProducer, error) {
	if cfg.JournalTopic == "" {
		return nil, fmt.Errorf("kafka journal topic is not configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for journal replay producer: %w", err)
	}
	defer conn.Close()

	if err := ensureTopic(conn, cfg.JournalTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure journal topic %s exists: %w", cfg.JournalTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.JournalTopic,
		Balancer:     &kafka.Hash{}, // same transaction hash, same partition
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}

	return &JournalReplayProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.JournalTopic,
	}, nil
}

func (p *JournalReplayProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal journal replay message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish journal replay message",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s: %w", p.topic, err)
	}

	p.logger.Info("Published journal replay message",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *JournalReplayProducer) Close() error {
	p.logger.Info("Closing journal replay producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
