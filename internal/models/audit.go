package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuditAction classifies a manual balance adjustment.
type AuditAction string

const (
	AuditManualCredit AuditAction = "MANUAL_CREDIT"
	AuditManualDebit  AuditAction = "MANUAL_DEBIT"
	AuditCorrection   AuditAction = "CORRECTION"
	AuditRefund       AuditAction = "REFUND"
)

// AuditEntry is the immutable record of one admin-initiated balance
// adjustment. BalanceAfter = BalanceBefore + Amount always holds, and
// matches the account balance at the moment the adjustment committed.
type AuditEntry struct {
	ID            string          `json:"id" db:"id"`
	AccountID     string          `json:"account_id" db:"account_id"`
	AdminID       string          `json:"admin_id" db:"admin_id"`
	Action        AuditAction     `json:"action" db:"action"`
	Amount        decimal.Decimal `json:"amount" db:"amount"` // signed
	BalanceBefore decimal.Decimal `json:"balance_before" db:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after" db:"balance_after"`
	Reason        string          `json:"reason" db:"reason"`
	Notes         *string         `json:"notes,omitempty" db:"notes"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	IPAddress     string          `json:"ip_address" db:"ip_address"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
