package token

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidStatus = errors.New("status must be one of active, retired, all")

// Token is one credit unit as reported by the ledger
type Token struct {
	ID             uint64     `json:"token_id"`
	Creator        string     `json:"creator"`
	CreatedAt      time.Time  `json:"created_at"`
	FactoryID      string     `json:"factory_id"`
	Owner          string     `json:"owner"`
	LastTransferAt time.Time  `json:"last_transfer_at"`
	Retired        bool       `json:"retired"`
	RetiredAt      *time.Time `json:"retired_at,omitempty"`
	RetiredBy      *string    `json:"retired_by,omitempty"`
}

// Transferred reports whether the token has left its creator
func (t Token) Transferred() bool {
	return !strings.EqualFold(t.Creator, t.Owner)
}

// OwnershipEntry is one step in a token's ownership history
type OwnershipEntry struct {
	Owner     string    `json:"owner"`
	Timestamp time.Time `json:"timestamp"`
}

// Details is a token together with its ownership history
type Details struct {
	Token
	History []OwnershipEntry `json:"history"`
}

// Status is the post-filter applied to search results
type Status string

const (
	StatusAll     Status = "all"
	StatusActive  Status = "active"
	StatusRetired Status = "retired"
)

// ParseStatus maps an empty string to StatusAll
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusActive:
		return StatusActive, nil
	case StatusRetired:
		return StatusRetired, nil
	}
	return "", ErrInvalidStatus
}

// Matches applies the status predicate to a token
func (s Status) Matches(t Token) bool {
	switch s {
	case StatusActive:
		return !t.Retired
	case StatusRetired:
		return t.Retired
	default:
		return true
	}
}

// SearchFilter selects the single ledger index used by a search.
// Implementations are ByFactory, ByOwner and All.
type SearchFilter interface {
	searchFilter()
}

type ByFactory struct {
	FactoryID string
}

type ByOwner struct {
	Owner string
}

type All struct{}

func (ByFactory) searchFilter() {}
func (ByOwner) searchFilter()   {}
func (All) searchFilter()       {}

// NewSearchFilter picks factory over owner over all
func NewSearchFilter(factoryID, owner string) SearchFilter {
	if f := strings.TrimSpace(factoryID); f != "" {
		return ByFactory{FactoryID: f}
	}
	if o := strings.TrimSpace(owner); o != "" {
		return ByOwner{Owner: o}
	}
	return All{}
}

// ErrTokenNotFound indicates the ledger has no such token
type ErrTokenNotFound struct {
	TokenID uint64
}

func (e ErrTokenNotFound) Error() string {
	return "token not found: " + strconv.FormatUint(e.TokenID, 10)
}

func (e ErrTokenNotFound) Is(target error) bool {
	t, ok := target.(ErrTokenNotFound)
	if !ok {
		return false
	}
	return t.TokenID == 0 || t.TokenID == e.TokenID
}
