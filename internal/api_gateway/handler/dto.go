package handler

import (
	"time"

	"github.com/hydrogen-credit-ledger/internal/domain/account"
)

// CreateAccountRequest represents a request to register a new account
type CreateAccountRequest struct {
	Username      string `json:"username" binding:"required"`
	Email         string `json:"email" binding:"required"`
	Role          string `json:"role" binding:"required"`
	FactoryName   string `json:"factoryName"`
	WalletAddress string `json:"walletAddress"`
}

// AssignWalletRequest represents a wallet assignment
type AssignWalletRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	WalletAddress string `json:"wallet_address,omitempty"`
	FactoryName   string `json:"factory_name,omitempty"`
	FactoryID     string `json:"factory_id,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// MintRequest mints quantity credits; FactoryID defaults to the caller's factory
type MintRequest struct {
	FactoryID string `json:"factoryId"`
	Quantity  int    `json:"quantity"`
}

// TransferRequest sends a token to a wallet address
type TransferRequest struct {
	TokenID uint64 `json:"tokenId" binding:"required"`
	To      string `json:"to" binding:"required"`
}

// TransferByIdentifierRequest sends a token to the account matching a username, factory id or account id
type TransferByIdentifierRequest struct {
	TokenID             uint64 `json:"tokenId" binding:"required"`
	RecipientIdentifier string `json:"recipientIdentifier"`
}

// RetireRequest retires a token
type RetireRequest struct {
	TokenID uint64 `json:"tokenId" binding:"required"`
}

// ListCreditsParams are the query parameters of the role-shaped credit list
type ListCreditsParams struct {
	Page      int64  `form:"page,default=1" binding:"min=1"`
	Limit     int64  `form:"limit" binding:"min=0"`
	Search    string `form:"search"`
	FactoryID string `form:"factoryId"`
	Owner     string `form:"owner"`
	Status    string `form:"status"`
}

// SearchParams are the advanced search query parameters; From and To are RFC 3339
type SearchParams struct {
	FactoryID string     `form:"factoryId"`
	Owner     string     `form:"owner"`
	Status    string     `form:"status"`
	Text      string     `form:"text"`
	From      *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To        *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Offset    int64      `form:"offset" binding:"min=0"`
	Limit     int64      `form:"limit" binding:"min=0"`
}

// RecipientResponse previews who a transfer by identifier reaches
type RecipientResponse struct {
	AccountID     string `json:"account_id"`
	Username      string `json:"username"`
	Role          string `json:"role"`
	WalletAddress string `json:"wallet_address"`
	FactoryID     string `json:"factory_id,omitempty"`
	FactoryName   string `json:"factory_name,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}

func mapAccountToResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		ID:            acc.ID,
		Username:      acc.Username,
		Email:         acc.Email,
		Role:          acc.Role.String(),
		WalletAddress: acc.Wallet(),
		FactoryName:   acc.FactoryName,
		FactoryID:     acc.FactoryID,
		CreatedAt:     acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     acc.UpdatedAt.Format(time.RFC3339),
	}
}

func mapRecipientToResponse(acc *account.Account) RecipientResponse {
	return RecipientResponse{
		AccountID:     acc.ID,
		Username:      acc.Username,
		Role:          acc.Role.String(),
		WalletAddress: acc.Wallet(),
		FactoryID:     acc.FactoryID,
		FactoryName:   acc.FactoryName,
	}
}
