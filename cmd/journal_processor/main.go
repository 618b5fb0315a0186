package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hydrogen-credit-ledger/internal/config"
	"github.com/hydrogen-credit-ledger/internal/data/mongo"
	"github.com/hydrogen-credit-ledger/internal/data/postgres"
	"github.com/hydrogen-credit-ledger/internal/journal_processor/components"
	"github.com/hydrogen-credit-ledger/internal/ledger"
	"github.com/hydrogen-credit-ledger/internal/logger"
	"github.com/hydrogen-credit-ledger/internal/platform/chain"
	"github.com/hydrogen-credit-ledger/internal/platform/messaging/consumers"
	"github.com/hydrogen-credit-ledger/internal/platform/messaging/producers"
	"github.com/hydrogen-credit-ledger/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("journal_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Journal Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}
	if err = mongoDB.EnsureIndexes(appCtx, mongo.JournalCollectionName, mongo.JournalIndexes); err != nil {
		log.Error("Failed to ensure journal indexes", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	cursorRepo := postgres.NewCursorRepository(log, postgresDB)
	journalRepo := mongo.NewJournalRepository(log, mongoDB)

	// The reconciler reads chain events; its passes fail until the client is connected
	ledgerClient := ledger.New(cfg.Ledger, chain.NewDialer(), logger.Component(log, "ledger"))
	go func() {
		if err := ledgerClient.Connect(appCtx, ledger.ConnectBackOff()); err != nil {
			log.Error("Ledger client initialization abandoned", "error", err)
		}
	}()

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer is nil when no DLQ topic is configured; PublishToDLQ then reports ErrDLQDisabled

	comp := components.Create(cfg, journalRepo, cursorRepo, ledgerClient, dlqProducer, log)

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(logger.Component(log, "consumer"), &cfg.Kafka, cfg.Kafka.JournalTopic)

	// Create error channel for service errors
	errChan := make(chan error, 1)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	log.Info("Starting Kafka consumer",
		"topic", cfg.Kafka.JournalTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := kafkaConsumer.Subscribe(appCtx, comp.Handler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("kafka consumer error: %w", err)
	}

	// Start reconciler in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting reconciler",
			"interval", cfg.Reconciler.PollingInterval.String(),
			"batch_size", cfg.Reconciler.BlockBatchSize,
		)
		comp.Reconciler.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close Kafka consumer before releasing the pool it feeds
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	comp.Shutdown()

	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	ledgerClient.Close()

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Journal Processor shutdown with errors", "error", serviceErr)
	} else {
		log.Info("Journal Processor shutdown completed successfully")
	}
}
