package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// KYCStatus is the identity-verification state of an account owner.
// Only APPROVED accounts qualify for the verified fee tier.
type KYCStatus string

const (
	KYCPending  KYCStatus = "PENDING"
	KYCApproved KYCStatus = "APPROVED"
	KYCRejected KYCStatus = "REJECTED"
)

// AccountType distinguishes user wallets, agent float wallets and
// internal platform accounts (fee revenue). SYSTEM accounts are the
// only ones allowed to carry a negative balance.
type AccountType string

const (
	AccountUser   AccountType = "USER"
	AccountAgent  AccountType = "AGENT"
	AccountSystem AccountType = "SYSTEM"
)

// Account is the single mutable balance row per (owner, currency).
// Mutated only by the ledger engine; version is bumped on every write
// for optimistic locking on top of the row lock.
type Account struct {
	ID                string          `json:"id" db:"id"`
	OwnerID           string          `json:"owner_id" db:"owner_id"`
	Type              AccountType     `json:"type" db:"type"`
	Currency          string          `json:"currency" db:"currency"`
	Balance           decimal.Decimal `json:"balance" db:"balance"`
	KYCStatus         KYCStatus       `json:"kyc_status" db:"kyc_status"`
	CommissionRate    decimal.Decimal `json:"commission_rate" db:"commission_rate"` // percent, agents only
	Version           int             `json:"version" db:"version"`
	LastTransactionAt *time.Time      `json:"last_transaction_at" db:"last_transaction_at"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// Verified reports whether the account qualifies for the lower fee tier.
func (a *Account) Verified() bool {
	return a.KYCStatus == KYCApproved
}
