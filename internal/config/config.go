// Package config provides configuration structures and validation for the application.
// It handles environment-based configuration for the HTTP gateway, the ledger RPC
// connection, the account and journal stores, and the journal processor.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration with settings for all components.
// Each field represents a major subsystem's configuration and is validated during
// application startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Auth        AuthConfig
	Ledger      LedgerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Reconciler  ReconcilerConfig
	WorkerPool  WorkerPoolConfig
	Mint        MintConfig
	ReadModel   ReadModelConfig
	Account     AccountConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// AuthConfig contains bearer token verification settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string // Optional; checked only when set
}

// LedgerConfig contains the token ledger RPC and signing settings
type LedgerConfig struct {
	RPCURL              string
	ContractAddress     string
	PrivateKey          string        // Hex encoded signing key, without 0x prefix
	ChainID             int64         // 0 means ask the node
	CallTimeout         time.Duration // Upper bound for every ledger call, including mining
	ReceiptPollInterval time.Duration
	ReadRetryMaxElapsed time.Duration // Total retry window for read-only calls
	BatchConcurrency    int           // Parallel detail fetches
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	JournalTopic      string // Journal records whose direct write failed
	NumPartitions     int    // Number of partitions for topics
	ReplicationFactor int    // Replication factor for topics
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string // Topic for Dead Letter Queue
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// ReconcilerConfig controls the chain event backfill loop
type ReconcilerConfig struct {
	PollingInterval time.Duration
	BlockBatchSize  uint64
	StartBlock      uint64 // First block scanned when no cursor is stored
	Confirmations   uint64 // Blocks left unscanned at the head
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of workers in the pool
}

// MintConfig bounds mint batches
type MintConfig struct {
	MaxQuantity int
}

// ReadModelConfig contains enriched view settings
type ReadModelConfig struct {
	RecentTransactions int   // Journal records attached to regulator views
	DefaultPageSize    int64 // Used when the caller omits a limit
	MaxPageSize        int64
}

// AccountConfig contains account registration settings
type AccountConfig struct {
	FactoryIDMaxAttempts int
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Auth config
	if c.Auth.JWTSecret == "" {
		validationErrors = append(validationErrors, "AUTH_JWT_SECRET is required")
	}

	// Validate Ledger config
	if c.Ledger.RPCURL == "" {
		validationErrors = append(validationErrors, "LEDGER_RPC_URL is required")
	}
	if c.Ledger.ContractAddress == "" {
		validationErrors = append(validationErrors, "LEDGER_CONTRACT_ADDRESS is required")
	}
	if c.Ledger.CallTimeout <= 0 {
		validationErrors = append(validationErrors, "LEDGER_CALL_TIMEOUT must be greater than 0")
	}
	if c.Ledger.ReceiptPollInterval <= 0 {
		validationErrors = append(validationErrors, "LEDGER_RECEIPT_POLL_INTERVAL must be greater than 0")
	}
	if c.Ledger.ReadRetryMaxElapsed < 0 {
		validationErrors = append(validationErrors, "LEDGER_READ_RETRY_MAX_ELAPSED must not be negative")
	}
	if c.Ledger.BatchConcurrency <= 0 {
		validationErrors = append(validationErrors, "LEDGER_BATCH_CONCURRENCY must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.JournalTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_JOURNAL_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate Reconciler config
	if c.Reconciler.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "RECONCILER_POLLING_INTERVAL must be greater than 0")
	}
	if c.Reconciler.BlockBatchSize == 0 {
		validationErrors = append(validationErrors, "RECONCILER_BLOCK_BATCH_SIZE must be greater than 0")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if c.Mint.MaxQuantity <= 0 {
		validationErrors = append(validationErrors, "MINT_MAX_QUANTITY must be greater than 0")
	}

	if c.ReadModel.RecentTransactions <= 0 {
		validationErrors = append(validationErrors, "READMODEL_RECENT_TRANSACTIONS must be greater than 0")
	}
	if c.ReadModel.DefaultPageSize <= 0 {
		validationErrors = append(validationErrors, "READMODEL_DEFAULT_PAGE_SIZE must be greater than 0")
	}
	if c.ReadModel.MaxPageSize < c.ReadModel.DefaultPageSize {
		validationErrors = append(validationErrors, "READMODEL_MAX_PAGE_SIZE must not be less than READMODEL_DEFAULT_PAGE_SIZE")
	}

	if c.Account.FactoryIDMaxAttempts <= 0 {
		validationErrors = append(validationErrors, "ACCOUNT_FACTORY_ID_MAX_ATTEMPTS must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
