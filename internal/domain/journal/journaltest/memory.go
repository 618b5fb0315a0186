// Package journaltest provides an in-memory journal.Repository
package journaltest

import (
	"context"
	"sort"
	"sync"

	"github.com/hydrogen-credit-ledger/internal/domain/journal"
)

type Repository struct {
	mu      sync.Mutex
	records map[string]*journal.Record

	// InsertErr, when set, fails every Insert
	InsertErr error
}

func NewRepository() *Repository {
	return &Repository{records: make(map[string]*journal.Record)}
}

func (r *Repository) Insert(_ context.Context, record *journal.Record) (*journal.Record, bool, error) {
	if err := record.Validate(); err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InsertErr != nil {
		return nil, false, r.InsertErr
	}
	if existing, ok := r.records[record.TransactionHash]; ok {
		c := *existing
		return &c, false, nil
	}
	stored := *record
	r.records[record.TransactionHash] = &stored
	return record, true, nil
}

func (r *Repository) GetByHash(_ context.Context, hash string) (*journal.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[hash]
	if !ok {
		return nil, journal.ErrRecordNotFound{TransactionHash: hash}
	}
	c := *rec
	return &c, nil
}

func (r *Repository) AttachRecipient(_ context.Context, hash, accountID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[hash]
	if !ok {
		return false, journal.ErrRecordNotFound{TransactionHash: hash}
	}
	if rec.RecipientAccountID != nil {
		return false, nil
	}
	rec.RecipientAccountID = &accountID
	return true, nil
}

func (r *Repository) Recent(_ context.Context, limit int) ([]*journal.Record, error) {
	all := r.sorted(func(*journal.Record) bool { return true })
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *Repository) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]*journal.Record, error) {
	all := r.sorted(func(rec *journal.Record) bool { return involves(rec, accountID) })
	if offset < 0 || offset >= len(all) {
		return []*journal.Record{}, nil
	}
	return all[offset : offset+min(limit, len(all)-offset)], nil
}

func (r *Repository) CountByAccount(_ context.Context, accountID string) (int64, error) {
	return int64(len(r.sorted(func(rec *journal.Record) bool { return involves(rec, accountID) }))), nil
}

func (r *Repository) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.records)), nil
}

// All returns every stored record, newest first
func (r *Repository) All() []*journal.Record {
	return r.sorted(func(*journal.Record) bool { return true })
}

func (r *Repository) sorted(keep func(*journal.Record) bool) []*journal.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*journal.Record, 0, len(r.records))
	for _, rec := range r.records {
		if keep(rec) {
			c := *rec
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ObservedAt.Equal(out[j].ObservedAt) {
			return out[i].BlockNumber > out[j].BlockNumber
		}
		return out[i].ObservedAt.After(out[j].ObservedAt)
	})
	return out
}

// involves treats an empty account id as matching every record
func involves(rec *journal.Record, accountID string) bool {
	if accountID == "" {
		return true
	}
	return rec.InitiatorAccountID == accountID ||
		(rec.RecipientAccountID != nil && *rec.RecipientAccountID == accountID)
}

var _ journal.Repository = (*Repository)(nil)
