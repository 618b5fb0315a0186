package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
)

const (
	partitionReadAttempts = 5
	partitionReadInterval = 2 * time.Second
)

// ensureTopic creates the topic when its partitions cannot be read
func ensureTopic(conn TopicConn, topicName string, numPartitions int, replicationFactor int, log *slog.Logger) error {
	return ensureTopicWithBackOff(conn, topicName, numPartitions, replicationFactor, log,
		backoff.WithMaxRetries(backoff.NewConstantBackOff(partitionReadInterval), partitionReadAttempts-1))
}

func ensureTopicWithBackOff(conn TopicConn, topicName string, numPartitions int, replicationFactor int, log *slog.Logger, b backoff.BackOff) error {
	log.Info("Checking if Kafka topic exists", "topic", topicName)

	var partitions []kafka.Partition
	readErr := backoff.RetryNotify(func() error {
		var err error
		partitions, err = conn.ReadPartitions(topicName)
		return err
	}, b, func(err error, wait time.Duration) {
		log.Warn("Failed to read partitions, retrying", "topic", topicName, "wait", wait, "error", err)
	})

	if readErr == nil && len(partitions) > 0 {
		log.Info("Kafka topic already exists", "topic", topicName, "partitions", len(partitions))
		return nil
	}

	topicConfig := kafka.TopicConfig{
		Topic:             topicName,
		NumPartitions:     max(numPartitions, 1),
		ReplicationFactor: max(replicationFactor, 1),
	}
	log.Info("Creating Kafka topic", "topic", topicName, "partitions", topicConfig.NumPartitions, "last_read_error", readErr)

	if err := conn.CreateTopics(topicConfig); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topicName, err)
	}
	log.Info("Successfully created Kafka topic", "topic", topicName)
	return nil
}
