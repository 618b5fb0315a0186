package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/hydrogen-credit-ledger/internal/domain/cursor"
	"github.com/hydrogen-credit-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// CursorRepository implements the cursor.Repository interface for PostgreSQL
type CursorRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewCursorRepository(logger *slog.Logger, db *persistence.PostgresDB) cursor.Repository {
	return &CursorRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Get returns the stored cursor, or a zero cursor when none exists yet
func (r *CursorRepository) Get(ctx context.Context, name string) (cursor.Cursor, error) {
	query := `SELECT name, block_number, updated_at FROM ledger_cursors WHERE name = $1`

	c := cursor.Cursor{Name: name}
	var block int64
	err := r.querier.QueryRow(ctx, query, name).Scan(&c.Name, &block, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cursor.Cursor{Name: name}, nil
		}
		r.logger.Error("Failed to get cursor", "name", name, "error", err)
		return cursor.Cursor{}, fmt.Errorf("failed to get cursor: %w", err)
	}
	c.BlockNumber = uint64(block)
	return c, nil
}

// Set upserts the cursor position
func (r *CursorRepository) Set(ctx context.Context, name string, blockNumber uint64) error {
	if blockNumber > math.MaxInt64 {
		return fmt.Errorf("block number %d out of range", blockNumber)
	}

	query := `
		INSERT INTO ledger_cursors (name, block_number, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET block_number = EXCLUDED.block_number, updated_at = NOW()
	`

	if _, err := r.querier.Exec(ctx, query, name, int64(blockNumber)); err != nil {
		r.logger.Error("Failed to set cursor", "name", name, "block", blockNumber, "error", err)
		return fmt.Errorf("failed to set cursor: %w", err)
	}
	return nil
}
