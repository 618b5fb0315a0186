package journal

import (
	"context"
)

// Repository manages journal record persistence
type Repository interface {
	// Insert stores the record unless one with the same hash exists; the stored record is returned either way
	Insert(ctx context.Context, record *Record) (stored *Record, created bool, err error)
	GetByHash(ctx context.Context, hash string) (*Record, error)

	// AttachRecipient sets the recipient account once; applied is false when it was already set
	AttachRecipient(ctx context.Context, hash, accountID string) (applied bool, err error)
	Recent(ctx context.Context, limit int) ([]*Record, error)

	// ListByAccount and CountByAccount cover every record when accountID is empty
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*Record, error)
	CountByAccount(ctx context.Context, accountID string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// ErrRecordNotFound indicates a missing journal record
type ErrRecordNotFound struct {
	TransactionHash string
}

func (e ErrRecordNotFound) Error() string {
	return "journal record not found: " + e.TransactionHash
}

func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	return t.TransactionHash == "" || t.TransactionHash == e.TransactionHash
}
