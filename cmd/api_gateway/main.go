package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hydrogen-credit-ledger/internal/api_gateway"
	"github.com/hydrogen-credit-ledger/internal/api_gateway/service"
	"github.com/hydrogen-credit-ledger/internal/config"
	"github.com/hydrogen-credit-ledger/internal/data/mongo"
	"github.com/hydrogen-credit-ledger/internal/data/postgres"
	"github.com/hydrogen-credit-ledger/internal/dispatcher"
	"github.com/hydrogen-credit-ledger/internal/identity"
	"github.com/hydrogen-credit-ledger/internal/journaling"
	"github.com/hydrogen-credit-ledger/internal/ledger"
	"github.com/hydrogen-credit-ledger/internal/logger"
	"github.com/hydrogen-credit-ledger/internal/platform/chain"
	"github.com/hydrogen-credit-ledger/internal/platform/messaging/producers"
	"github.com/hydrogen-credit-ledger/internal/platform/persistence"
	"github.com/hydrogen-credit-ledger/internal/readmodel"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

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

	// Journal records whose direct write fails are replayed through Kafka
	replayProducer, err := producers.NewJournalReplayProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize journal replay producer", "error", err)
		os.Exit(1)
	}

	// Until the ledger client is up, ledger operations fail with NOT_INITIALIZED
	ledgerClient := ledger.New(cfg.Ledger, chain.NewDialer(), logger.Component(log, "ledger"))
	go func() {
		if err := ledgerClient.Connect(appCtx, ledger.ConnectBackOff()); err != nil {
			log.Error("Ledger client initialization abandoned", "error", err)
		}
	}()

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(log, postgresDB, cfg.Account.FactoryIDMaxAttempts)
	journalRepo := mongo.NewJournalRepository(log, mongoDB)

	// Initialize services
	recorder := journaling.NewRecorder(logger.Component(log, "journal"), journalRepo, replayProducer)
	resolver := identity.NewResolver(log, accountRepo)
	views := readmodel.NewMerger(logger.Component(log, "read_model"), ledgerClient, accountRepo, recorder, cfg.ReadModel)
	creditDispatcher := dispatcher.New(logger.Component(log, "dispatcher"), accountRepo, ledgerClient, resolver, recorder, views, cfg.Mint)
	accountService := service.NewAccountService(log, accountRepo)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, ledgerClient, accountService, creditDispatcher)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	var shutdownErr error

	// Drain in-flight requests before closing their dependencies
	if err := server.Stop(context.Background(), cfg.Server.ShutdownTimeout); err != nil {
		log.Error("Error during server shutdown", "error", err)
		shutdownErr = err
	}

	ledgerClient.Close()

	if err := replayProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
		shutdownErr = err
	}

	postgresDB.Close()

	mongoCtx, cancelMongo := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelMongo()
	if err := mongoDB.Close(mongoCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if shutdownErr != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
