package account

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Validation errors
var (
	ErrEmptyUsername       = errors.New("username cannot be empty")
	ErrInvalidEmail        = errors.New("email is not a valid address")
	ErrInvalidRole         = errors.New("role must be one of PRODUCER, REGULATOR, BUYER, CERTIFIER")
	ErrFactoryNameRequired = errors.New("factory name is required for producers")
	ErrFactoryNotAllowed   = errors.New("only producers may register a factory")
	ErrInvalidWallet       = errors.New("wallet address must be a 20-byte hex address")
)

const (
	FactoryIDPrefix = "HYDR"
	FactoryIDLength = 12

	factoryIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Role is the closed set of account roles
type Role string

const (
	RoleProducer  Role = "PRODUCER"
	RoleRegulator Role = "REGULATOR"
	RoleBuyer     Role = "BUYER"
	RoleCertifier Role = "CERTIFIER"
)

// ParseRole accepts a role name in any case
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleProducer, RoleRegulator, RoleBuyer, RoleCertifier:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// Account is a registered user. Producers carry a factory, everyone may carry a wallet.
type Account struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	WalletAddress *string   `json:"wallet_address,omitempty"`
	FactoryName   string    `json:"factory_name,omitempty"`
	FactoryID     string    `json:"factory_id,omitempty"` // Assigned by the repository on first save
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewAccount validates registration input and returns an unsaved account
func NewAccount(username, email string, role Role, factoryName, wallet string) (*Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	factoryName = strings.TrimSpace(factoryName)
	switch role {
	case RoleProducer:
		if factoryName == "" {
			return nil, ErrFactoryNameRequired
		}
	case RoleRegulator, RoleBuyer, RoleCertifier:
		if factoryName != "" {
			return nil, ErrFactoryNotAllowed
		}
	}

	now := time.Now().UTC()
	a := &Account{
		ID:          primitive.NewObjectID().Hex(),
		Username:    username,
		Email:       strings.ToLower(strings.TrimSpace(email)),
		Role:        role,
		FactoryName: factoryName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if wallet != "" {
		if err := a.AssignWallet(wallet); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// AssignWallet sets the wallet in checksum form
func (a *Account) AssignWallet(wallet string) error {
	normalized, err := NormalizeWallet(wallet)
	if err != nil {
		return err
	}
	a.WalletAddress = &normalized
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Wallet returns the wallet address or an empty string
func (a *Account) Wallet() string {
	if a.WalletAddress == nil {
		return ""
	}
	return *a.WalletAddress
}

// HasWallet reports whether a wallet has been assigned
func (a *Account) HasWallet() bool {
	return a.WalletAddress != nil && *a.WalletAddress != ""
}

// NeedsFactoryID reports whether the account still waits for its factory identifier
func (a *Account) NeedsFactoryID() bool {
	return a.Role == RoleProducer && a.FactoryID == ""
}

// NormalizeWallet validates a hex address and returns its checksum form
func NormalizeWallet(wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if !common.IsHexAddress(wallet) {
		return "", ErrInvalidWallet
	}
	return common.HexToAddress(wallet).Hex(), nil
}

// IsValidID reports whether s has the account id format (24 hex characters)
func IsValidID(s string) bool {
	return primitive.IsValidObjectID(s)
}

// GenerateFactoryID returns HYDR followed by 8 random uppercase alphanumerics
func GenerateFactoryID() (string, error) {
	var sb strings.Builder
	sb.Grow(FactoryIDLength)
	sb.WriteString(FactoryIDPrefix)

	max := big.NewInt(int64(len(factoryIDAlphabet)))
	for sb.Len() < FactoryIDLength {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate factory id: %w", err)
		}
		sb.WriteByte(factoryIDAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// IsValidFactoryID checks length and alphabet of a factory identifier
func IsValidFactoryID(s string) bool {
	if len(s) != FactoryIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !strings.ContainsRune(factoryIDAlphabet, rune(s[i])) {
			return false
		}
	}
	return true
}

// NormalizeFactoryID uppercases user input for factory id comparison
func NormalizeFactoryID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
