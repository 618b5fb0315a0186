package cursor

import (
	"context"
	"time"
)

// Cursor marks the last ledger block whose events were reconciled into the journal
type Cursor struct {
	Name        string    `json:"name"`
	BlockNumber uint64    `json:"block_number"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Next returns the first block that still needs scanning
func (c Cursor) Next() uint64 {
	if c.BlockNumber == 0 && c.UpdatedAt.IsZero() {
		return 0
	}
	return c.BlockNumber + 1
}

// Repository persists reconciler cursors
type Repository interface {
	// Get returns a zero cursor with the given name when none is stored
	Get(ctx context.Context, name string) (Cursor, error)
	Set(ctx context.Context, name string, blockNumber uint64) error
}
