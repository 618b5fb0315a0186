package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hydrogen-credit-ledger/internal/domain/journal"
	"github.com/hydrogen-credit-ledger/internal/platform/persistence"
)

const (
	// JournalCollectionName is the name of the journal collection in MongoDB
	JournalCollectionName = "journal_records"
)

// JournalIndexes are ensured at startup. The unique hash index is what makes Insert idempotent.
var JournalIndexes = []mongo.IndexModel{
	{
		Keys:    bson.D{{Key: "transaction_hash", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_transaction_hash"),
	},
	{
		Keys:    bson.D{{Key: "observed_at", Value: -1}},
		Options: options.Index().SetName("observed_at_desc"),
	},
	{
		Keys:    bson.D{{Key: "initiator_account_id", Value: 1}, {Key: "observed_at", Value: -1}},
		Options: options.Index().SetName("initiator_observed"),
	},
	{
		Keys:    bson.D{{Key: "recipient_account_id", Value: 1}, {Key: "observed_at", Value: -1}},
		Options: options.Index().SetName("recipient_observed").SetSparse(true),
	},
}

// JournalRepository implements the journal.Repository interface for MongoDB
type JournalRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewJournalRepository creates a new MongoDB journal repository
func NewJournalRepository(logger *slog.Logger, db *persistence.MongoDB) journal.Repository {
	return &JournalRepository{
		collection: db.Collection(JournalCollectionName),
		logger:     logger,
	}
}

// Insert stores the record. When a record with the same hash already exists
// the stored one is returned with created set to false.
func (r *JournalRepository) Insert(ctx context.Context, record *journal.Record) (*journal.Record, bool, error) {
	if err := record.Validate(); err != nil {
		return nil, false, err
	}

	_, err := r.collection.InsertOne(ctx, record)
	if err == nil {
		return record, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		r.logger.Error("Failed to insert journal record",
			"transaction_hash", record.TransactionHash,
			"error", err)
		return nil, false, fmt.Errorf("failed to insert journal record: %w", err)
	}

	existing, err := r.GetByHash(ctx, record.TransactionHash)
	if err != nil {
		return nil, false, err
	}
	r.logger.Debug("Journal record already present",
		"transaction_hash", record.TransactionHash,
		"source", string(existing.Source))
	return existing, false, nil
}

// GetByHash retrieves a record by its transaction hash.
// Returns ErrRecordNotFound if no record exists.
func (r *JournalRepository) GetByHash(ctx context.Context, hash string) (*journal.Record, error) {
	var record journal.Record
	err := r.collection.FindOne(ctx, bson.M{"transaction_hash": hash}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, journal.ErrRecordNotFound{TransactionHash: hash}
		}
		r.logger.Error("Failed to get journal record",
			"transaction_hash", hash,
			"error", err)
		return nil, fmt.Errorf("failed to get journal record: %w", err)
	}
	return &record, nil
}

// AttachRecipient sets the recipient account on a record that has none yet
func (r *JournalRepository) AttachRecipient(ctx context.Context, hash, accountID string) (bool, error) {
	filter := bson.M{
		"transaction_hash":     hash,
		"recipient_account_id": bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{"recipient_account_id": accountID}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to attach recipient",
			"transaction_hash", hash,
			"error", err)
		return false, fmt.Errorf("failed to attach recipient: %w", err)
	}
	if result.MatchedCount > 0 {
		return true, nil
	}

	// Nothing matched: either the record is missing or the recipient was set before
	if _, err := r.GetByHash(ctx, hash); err != nil {
		return false, err
	}
	return false, nil
}

// Recent returns the newest records first
func (r *JournalRepository) Recent(ctx context.Context, limit int) ([]*journal.Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "observed_at", Value: -1}}).
		SetLimit(int64(limit))

	records, err := r.find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to get recent journal records", "error", err)
		return nil, fmt.Errorf("failed to get recent journal records: %w", err)
	}
	return records, nil
}

// ListByAccount pages through records the account initiated or received, newest first
func (r *JournalRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*journal.Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "observed_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	records, err := r.find(ctx, accountFilter(accountID), opts)
	if err != nil {
		r.logger.Error("Failed to list journal records",
			"account_id", accountID,
			"error", err)
		return nil, fmt.Errorf("failed to list journal records: %w", err)
	}
	return records, nil
}

func (r *JournalRepository) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, accountFilter(accountID))
	if err != nil {
		r.logger.Error("Failed to count journal records",
			"account_id", accountID,
			"error", err)
		return 0, fmt.Errorf("failed to count journal records: %w", err)
	}
	return count, nil
}

func (r *JournalRepository) Count(ctx context.Context) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		r.logger.Error("Failed to count journal records", "error", err)
		return 0, fmt.Errorf("failed to count journal records: %w", err)
	}
	return count, nil
}

func (r *JournalRepository) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]*journal.Record, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := make([]*journal.Record, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// accountFilter matches every record when accountID is empty
func accountFilter(accountID string) bson.M {
	if accountID == "" {
		return bson.M{}
	}
	return bson.M{"$or": bson.A{
		bson.M{"initiator_account_id": accountID},
		bson.M{"recipient_account_id": accountID},
	}}
}
